package imgcipher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"img-chaos/internal/grid"
)

// Result is the outcome for one image of a batch.
type Result struct {
	Index  int
	Image  grid.Image
	Bundle *KeyBundle
	Err    error
}

// EncryptBatch encrypts every image concurrently under the same passphrase.
// Results are returned in input order and one failure does not affect the
// others. Images not yet started when ctx is done get ctx.Err().
func (c *Cipher) EncryptBatch(ctx context.Context, imgs []grid.Image, passphrase string) []Result {
	return c.batch(ctx, len(imgs), func(i int) Result {
		out, b, err := c.EncryptImage(imgs[i], passphrase)
		return Result{Index: i, Image: out, Bundle: b, Err: err}
	})
}

// DecryptBatch decrypts imgs[i] with bundles[i].
func (c *Cipher) DecryptBatch(ctx context.Context, imgs []grid.Image, bundles []*KeyBundle, passphrase string) []Result {
	return c.batch(ctx, len(imgs), func(i int) Result {
		var b *KeyBundle
		if i < len(bundles) {
			b = bundles[i]
		}
		out, err := c.DecryptImage(imgs[i], passphrase, b)
		return Result{Index: i, Image: out, Bundle: b, Err: err}
	})
}

func (c *Cipher) batch(ctx context.Context, n int, run func(i int) Result) []Result {
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[i] = Result{Index: i, Err: err}
				return
			}
			results[i] = run(i)
			if results[i].Err != nil {
				c.log.Warn("batch item failed", zap.Int("index", i), zap.Error(results[i].Err))
			}
		}(i)
	}
	wg.Wait()
	return results
}
