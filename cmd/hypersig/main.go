// Command hypersig is a thin command-line front end over the hypersig
// package: generate a signing key's backup, sign a message against it
// advancing its index, and verify a signature blob.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hypersig/hypersig"
)

func parseHeights(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	heights := make([]uint32, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid height %q: %w", part, err)
		}
		heights[i] = uint32(v)
	}
	return heights, nil
}

func paramsFromFlags(c *cli.Context) (hypersig.Params, error) {
	heights, err := parseHeights(c.String("heights"))
	if err != nil {
		return hypersig.Params{}, err
	}
	p := hypersig.Params{
		HashLen: uint32(c.Uint("hashlen")),
		OTSBits: uint32(c.Uint("otsbits")),
		Heights: heights,
	}
	if err := p.Validate(); err != nil {
		return hypersig.Params{}, err
	}
	return p, nil
}

func loadBackup(path string) (*hypersig.Backup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var backup hypersig.Backup
	if err := json.Unmarshal(raw, &backup); err != nil {
		return nil, fmt.Errorf("parsing backup file %s: %w", path, err)
	}
	return &backup, nil
}

func saveBackup(path string, backup *hypersig.Backup) error {
	raw, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func paramsFromBackup(backup *hypersig.Backup) hypersig.Params {
	return hypersig.Params{HashLen: backup.HashLen, OTSBits: backup.OTSBits, Heights: backup.Heights}
}

func cmdKeygen(c *cli.Context) error {
	p, err := paramsFromFlags(c)
	if err != nil {
		return err
	}
	var seed []byte
	if hexSeed := c.String("seed"); hexSeed != "" {
		seed, err = hex.DecodeString(hexSeed)
		if err != nil {
			return fmt.Errorf("decoding --seed: %w", err)
		}
	} else {
		seed = make([]byte, p.HashLen)
		if _, err := rand.Read(seed); err != nil {
			return fmt.Errorf("generating random seed: %w", err)
		}
	}
	sk, err := hypersig.NewSigningKey(p, seed, 0, nil, nil)
	if err != nil {
		return err
	}
	backup := sk.Serialize()
	backup.Salt = hex.EncodeToString(seed)
	out := c.String("out")
	if err := saveBackup(out, backup); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote backup to %s (idx=%d)\n", out, backup.Idx)
	return nil
}

func cmdSign(c *cli.Context) error {
	backupPath := c.String("backup")
	backup, err := loadBackup(backupPath)
	if err != nil {
		return err
	}
	seed, err := hex.DecodeString(backup.Salt)
	if err != nil {
		return fmt.Errorf("backup file has no usable seed: %w", err)
	}
	p := paramsFromBackup(backup)
	sk, err := hypersig.RestoreSigningKey(p, seed, backup.Idx, backup, nil)
	if err != nil {
		return err
	}
	msg := []byte(c.String("msg"))
	sig, err := sk.SignData(msg, c.Bool("compressed"))
	if err != nil {
		return err
	}
	newBackup := sk.Serialize()
	newBackup.Salt = backup.Salt
	if err := saveBackup(backupPath, newBackup); err != nil {
		return err
	}
	sigOut := c.String("sig-out")
	sigHex := hex.EncodeToString(sig)
	if sigOut == "" {
		fmt.Fprintln(c.App.Writer, sigHex)
		return nil
	}
	return os.WriteFile(sigOut, []byte(sigHex+"\n"), 0o644)
}

func cmdVerify(c *cli.Context) error {
	p, err := paramsFromFlags(c)
	if err != nil {
		return err
	}
	sigHex := c.String("sig")
	if sigFile := c.String("sig-file"); sigFile != "" {
		raw, err := os.ReadFile(sigFile)
		if err != nil {
			return err
		}
		sigHex = strings.TrimSpace(string(raw))
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return fmt.Errorf("decoding --sig: %w", err)
	}
	msg := []byte(c.String("msg"))
	v := hypersig.NewValidator(p)
	ok, root, idx, err := v.VerifyData(msg, sig)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "idx=%d root=%s valid=%t\n", idx, hex.EncodeToString(root), ok)
	if !ok {
		return cli.Exit("signature did not verify", 1)
	}
	return nil
}

func cmdAlgs(c *cli.Context) error {
	p, err := paramsFromFlags(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\n", p.String())
	fmt.Fprintf(c.App.Writer, "p=%d w=%d total_height=%d max_index=%d\n", p.P(), p.W(), p.TotalHeight(), p.MaxIndex())
	return nil
}

func paramsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.UintFlag{Name: "hashlen", Value: 32, Usage: "hash/key output size in bytes"},
		&cli.UintFlag{Name: "otsbits", Value: 8, Usage: "Winternitz chunk width in bits"},
		&cli.StringFlag{Name: "heights", Required: true, Usage: "comma-separated per-tier heights, e.g. 4,4,4"},
	}
}

func main() {
	app := &cli.App{
		Name:  "hypersig",
		Usage: "generate, sign and verify with a hash-based hierarchical signing key",
		Commands: []*cli.Command{
			{
				Name:  "keygen",
				Usage: "create a fresh signing key backup",
				Flags: append(paramsFlags(),
					&cli.StringFlag{Name: "seed", Usage: "hex-encoded seed; random if omitted"},
					&cli.StringFlag{Name: "out", Required: true, Usage: "path to write the backup JSON file"},
				),
				Action: cmdKeygen,
			},
			{
				Name:  "sign",
				Usage: "sign a message, advancing and rewriting the backup file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "backup", Required: true, Usage: "path to the backup JSON file"},
					&cli.StringFlag{Name: "msg", Required: true, Usage: "message to sign"},
					&cli.BoolFlag{Name: "compressed", Usage: "omit redundant cross-signatures"},
					&cli.StringFlag{Name: "sig-out", Usage: "path to write the hex signature; stdout if omitted"},
				},
				Action: cmdSign,
			},
			{
				Name:  "verify",
				Usage: "verify a signature blob against a message",
				Flags: append(paramsFlags(),
					&cli.StringFlag{Name: "msg", Required: true, Usage: "message that was signed"},
					&cli.StringFlag{Name: "sig", Usage: "hex-encoded signature"},
					&cli.StringFlag{Name: "sig-file", Usage: "path to a file holding the hex-encoded signature"},
				),
				Action: cmdVerify,
			},
			{
				Name:   "algs",
				Usage:  "print the resolved parameter configuration",
				Flags:  paramsFlags(),
				Action: cmdAlgs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
