package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"img-chaos/internal/grid"
	"img-chaos/internal/imageio"
	"img-chaos/internal/imgcipher"
	"img-chaos/internal/metrics"
)

const passphraseEnv = envPrefix + "_PASSPHRASE"

// passphraseFrom prefers the flag and falls back to IMGCHAOS_PASSPHRASE so the
// secret can stay out of shell history.
func passphraseFrom(cmd *cobra.Command, flag string) (string, error) {
	p, _ := cmd.Flags().GetString(flag)
	if p == "" {
		p = os.Getenv(passphraseEnv)
	}
	if p == "" {
		return "", fmt.Errorf("no passphrase: pass --%s or set %s", flag, passphraseEnv)
	}
	return p, nil
}

func loadImageFile(path string, size int) (grid.Image, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return grid.Image{}, nil, err
	}
	defer f.Close()
	img, pal, err := imageio.Load(f, size)
	if err != nil {
		return grid.Image{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, paletteToHex(pal), nil
}

func writeImageFile(path string, img grid.Image, palette []string) error {
	var buf bytes.Buffer
	if err := writePNG(&buf, img, palette); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readBundleFile(path string) (*imgcipher.KeyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeBundle(data)
}

func writeBundleFile(path string, b *imgcipher.KeyBundle) error {
	var buf bytes.Buffer
	if err := encodeBundle(&buf, b, bundleFormatFor(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// defaultBundlePath derives "<out>.bundle.json" from the cipher image path.
func defaultBundlePath(out string) string {
	return strings.TrimSuffix(out, ".png") + ".bundle.json"
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [flags] <image>...",
	Short: "Encrypt images into cipher PNGs and key bundles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := passphraseFrom(cmd, "passphrase")
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		bundlePath, _ := cmd.Flags().GetString("bundle")
		if len(args) > 1 && (out != "" || bundlePath != "") {
			return fmt.Errorf("--out and --bundle take a single input image")
		}
		c, err := newCipher(appCfg)
		if err != nil {
			return err
		}

		imgs := make([]grid.Image, len(args))
		palettes := make([][]string, len(args))
		for i, path := range args {
			if imgs[i], palettes[i], err = loadImageFile(path, appCfg.Cipher.GridSize); err != nil {
				return err
			}
		}
		var failed int
		for _, res := range c.EncryptBatch(cmd.Context(), imgs, pass) {
			src := args[res.Index]
			if res.Err != nil {
				logger.Error("encrypt failed", zap.String("input", src), zap.Error(res.Err))
				failed++
				continue
			}
			dst := out
			if dst == "" {
				dst = strings.TrimSuffix(src, filepath.Ext(src)) + ".enc.png"
			}
			bp := bundlePath
			if bp == "" {
				bp = defaultBundlePath(dst)
			}
			if err := writeImageFile(dst, res.Image, palettes[res.Index]); err != nil {
				return err
			}
			if err := writeBundleFile(bp, res.Bundle); err != nil {
				return err
			}
			logger.Info("encrypted",
				zap.String("input", src),
				zap.String("output", dst),
				zap.String("bundle", bp),
				zap.Int("size", res.Image.Size))
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (bundle %s)\n", src, dst, bp)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [flags] <cipher.png>",
	Short: "Decrypt a cipher PNG with its key bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := passphraseFrom(cmd, "passphrase")
		if err != nil {
			return err
		}
		in := args[0]
		bundlePath, _ := cmd.Flags().GetString("bundle")
		if bundlePath == "" {
			bundlePath = defaultBundlePath(in)
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = strings.TrimSuffix(strings.TrimSuffix(in, ".png"), ".enc") + ".dec.png"
		}

		bundle, err := readBundleFile(bundlePath)
		if err != nil {
			return fmt.Errorf("read bundle %s: %w", bundlePath, err)
		}
		img, palette, err := loadImageFile(in, bundle.Size)
		if err != nil {
			return err
		}
		c, err := newCipher(appCfg)
		if err != nil {
			return err
		}
		plain, err := c.DecryptImage(img, pass, bundle)
		if err != nil {
			return err
		}
		if err := writeImageFile(out, plain, palette); err != nil {
			return err
		}
		logger.Info("decrypted", zap.String("input", in), zap.String("bundle", bundlePath), zap.String("output", out))
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", in, out)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] <plain> <cipher.png>",
	Short: "Print security metrics for a plain/cipher image pair",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cipherImg, _, err := loadImageFile(args[1], appCfg.Cipher.GridSize)
		if err != nil {
			return err
		}
		plain, _, err := loadImageFile(args[0], cipherImg.Size)
		if err != nil {
			return err
		}
		rep, err := metrics.SecurityReport(plain, cipherImg)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		renderSecurityTable(w, rep)

		k1, _ := cmd.Flags().GetString("key")
		k2, _ := cmd.Flags().GetString("key2")
		if k1 != "" && k2 != "" {
			c, err := newCipher(appCfg)
			if err != nil {
				return err
			}
			enc := func(img grid.Image, pass string) (grid.Image, error) {
				out, _, err := c.EncryptImage(img, pass)
				return out, err
			}
			v, err := metrics.KeySensitivity(enc, plain, k1, k2)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\nKey sensitivity (NPCR %q vs %q): %.4f%%\n", k1, k2, v)
		}
		fmt.Fprintln(w)
		renderRandomnessTable(w, rep.Randomness)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a random passphrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		length, _ := cmd.Flags().GetInt("length")
		source, _ := cmd.Flags().GetString("source")
		p, err := newPassphrase(source, length)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), p+"\n")
		return err
	},
}

func init() {
	encryptCmd.Flags().StringP("passphrase", "p", "", "passphrase (or "+passphraseEnv+")")
	encryptCmd.Flags().StringP("out", "o", "", "cipher PNG path (single input only)")
	encryptCmd.Flags().StringP("bundle", "b", "", "key bundle path; .json for JSON, otherwise binary")

	decryptCmd.Flags().StringP("passphrase", "p", "", "passphrase (or "+passphraseEnv+")")
	decryptCmd.Flags().StringP("out", "o", "", "decrypted PNG path")
	decryptCmd.Flags().StringP("bundle", "b", "", "key bundle path (default <input>.bundle.json)")

	analyzeCmd.Flags().String("key", "", "first passphrase for the key sensitivity test")
	analyzeCmd.Flags().String("key2", "", "second passphrase for the key sensitivity test")

	keygenCmd.Flags().IntP("length", "n", 24, "passphrase length")
	keygenCmd.Flags().String("source", entropyMix, "entropy source (os, jitter, mix)")
}
