// cmd/keygen/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"remittance-service/internal/security"

	"github.com/joho/godotenv"
)

// keygen prints a fresh MASTER_ENCRYPTION_KEY. With -seal it encrypts a
// custody secret for CUSTODY_SECRET_ENC; with -reseal it moves a value sealed
// under PREVIOUS_ENCRYPTION_KEY onto MASTER_ENCRYPTION_KEY.
func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	seal := fs.Bool("seal", false, "encrypt -secret for -address with MASTER_ENCRYPTION_KEY")
	reseal := fs.Bool("reseal", false, "re-encrypt -sealed for -address under MASTER_ENCRYPTION_KEY")
	address := fs.String("address", "", "wallet address the value is bound to")
	secret := fs.String("secret", "", "plaintext wallet secret (-seal)")
	sealed := fs.String("sealed", "", "sealed value to rotate (-reseal)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *seal && *reseal:
		return errors.New("-seal and -reseal are exclusive")

	case *seal:
		if *address == "" || *secret == "" {
			return errors.New("-address and -secret are required with -seal")
		}
		cipher, err := security.NewKeyCipher(getenv("MASTER_ENCRYPTION_KEY"), "")
		if err != nil {
			return err
		}
		value, err := cipher.Seal(*secret, *address)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, value)

	case *reseal:
		if *address == "" || *sealed == "" {
			return errors.New("-address and -sealed are required with -reseal")
		}
		cipher, err := security.NewKeyCipher(getenv("MASTER_ENCRYPTION_KEY"), getenv("PREVIOUS_ENCRYPTION_KEY"))
		if err != nil {
			return err
		}
		value, err := cipher.Reseal(*sealed, *address)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, value)

	default:
		key, err := security.GenerateMasterKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, key)
	}
	return nil
}
