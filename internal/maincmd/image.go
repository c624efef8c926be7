package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/lang/machine"
	"github.com/mna/nenuphar/lang/marshal"
)

// Image implements the "image" command: encode wraps a file's raw bytes as
// a marshaled program image (compressed, checksummed) written to stdout;
// decode reads such an image and writes the original bytes back out. This
// mainly exercises lang/marshal's entry points and its image persistence
// from the command line; it does not go through the compiler front end.
func (c *Cmd) Image(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) != 2 {
		return printError(stdio, fmt.Errorf("image: expected <encode|decode> <file>"))
	}

	sub, path := args[0], args[1]
	data, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, fmt.Errorf("image: %w", err))
	}

	switch sub {
	case "encode":
		img, err := marshal.WriteImage(machine.String(data), nil)
		if err != nil {
			return printError(stdio, fmt.Errorf("image: encode: %w", err))
		}
		if _, err := stdio.Stdout.Write(img); err != nil {
			return printError(stdio, fmt.Errorf("image: encode: %w", err))
		}
		return nil

	case "decode":
		v, err := marshal.ReadImage(data, nil)
		if err != nil {
			return printError(stdio, fmt.Errorf("image: decode: %w", err))
		}
		s, ok := v.(machine.String)
		if !ok {
			return printError(stdio, fmt.Errorf("image: decode: expected a string image, got %s", v.Type()))
		}
		if _, err := stdio.Stdout.Write([]byte(s)); err != nil {
			return printError(stdio, fmt.Errorf("image: decode: %w", err))
		}
		return nil

	default:
		return printError(stdio, fmt.Errorf("image: unknown subcommand %q", sub))
	}
}
