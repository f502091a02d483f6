package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/callfwd/internal/callfwd/config"
	"github.com/haukened/callfwd/internal/callfwd/domain"
	ctlgw "github.com/haukened/callfwd/internal/callfwd/gateways/control"
)

// Sender delivers one control command to the daemon.
type Sender interface {
	Send(ctx context.Context, cmd string, meta map[string]any, streams ctlgw.Streams) error
}

type options struct {
	socket  string
	timeout time.Duration

	file        string
	fileName    string
	rowEstimate int64
	country     string
	out         string
}

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. A nil sender dials the configured socket.
func newRootCmd(sender Sender) *cobra.Command {
	opts := &options{}
	socket := os.Getenv("CALLFWD_CONTROL_SOCKET")
	if socket == "" {
		socket = config.DEFAULT_APP_CONFIG.ControlSocket
	}

	root := &cobra.Command{
		Use:          "callfwdctl",
		Short:        "Administer a running callfwdd",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.socket, "socket", socket, "daemon control socket")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "give up after this long (0: wait for the daemon)")

	send := func(cmd *cobra.Command, name string, meta map[string]any, streams ctlgw.Streams) error {
		s := sender
		if s == nil {
			s = ctlgw.NewClient(opts.socket)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if opts.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.timeout)
			defer cancel()
		}
		if streams.Stderr == nil {
			streams.Stderr = os.Stderr
		}
		err := s.Send(ctx, name, meta, streams)
		if errors.Is(err, ctlgw.ErrFailed) {
			return fmt.Errorf("%s failed, see the daemon log", name)
		}
		return err
	}

	reload := &cobra.Command{
		Use:   "reload DOMAIN",
		Short: "Replace a domain's data with a CSV file",
		Long:  "Replace a domain's data with a CSV file read from --file or standard input.\nDomains: us, ca, dnc, tollfree, dno, dno_npa, dno_npa_nxx, dno_npa_nxx_x, lerg, youmail, geo, ftc, 404, 606, acl.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, meta, err := reloadCommand(args[0])
			if err != nil {
				return err
			}
			in, label, closeIn, err := openInput(opts.file)
			if err != nil {
				return err
			}
			defer closeIn()
			meta["file_name"] = label
			if opts.fileName != "" {
				meta["file_name"] = opts.fileName
			}
			if opts.rowEstimate > 0 {
				meta["row_estimate"] = opts.rowEstimate
			}
			return send(cmd, name, meta, ctlgw.Streams{Stdin: in})
		},
	}
	reload.Flags().StringVarP(&opts.file, "file", "f", "", "CSV file (default: standard input)")
	reload.Flags().StringVar(&opts.fileName, "file-name", "", "source name recorded in the snapshot metadata")
	reload.Flags().Int64Var(&opts.rowEstimate, "row-estimate", 0, "expected number of rows")

	verify := &cobra.Command{
		Use:   "verify [DOMAIN]",
		Short: "Compare a CSV file against the loaded data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := selectDomain(args, opts.country)
			if err != nil {
				return err
			}
			in, label, closeIn, err := openInput(opts.file)
			if err != nil {
				return err
			}
			defer closeIn()
			meta["file_name"] = label
			return send(cmd, "verify", meta, ctlgw.Streams{Stdin: in})
		},
	}
	verify.Flags().StringVarP(&opts.file, "file", "f", "", "CSV file (default: standard input)")
	verify.Flags().StringVar(&opts.country, "country", "US", "routing table to compare when no domain is given")

	dump := &cobra.Command{
		Use:   "dump [DOMAIN]",
		Short: "Write the loaded data as CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := selectDomain(args, opts.country)
			if err != nil {
				return err
			}
			out := os.Stdout
			if opts.out != "" {
				f, err := os.Create(opts.out)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return send(cmd, "dump", meta, ctlgw.Streams{Stdout: out})
		},
	}
	dump.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: standard output)")
	dump.Flags().StringVar(&opts.country, "country", "US", "routing table to dump when no domain is given")

	meta := &cobra.Command{
		Use:   "meta",
		Short: "Print the metadata of every loaded domain and recent operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return send(cmd, "meta", nil, ctlgw.Streams{})
		},
	}

	root.AddCommand(reload, verify, dump, meta)
	return root
}

// reloadCommand maps a domain name to its control command.
func reloadCommand(name string) (string, map[string]any, error) {
	id, err := domain.ParseDomainID(name)
	if err != nil {
		return "", nil, err
	}
	meta := map[string]any{}
	switch id {
	case domain.DomainUS:
		meta["country"] = "US"
		return "reload", meta, nil
	case domain.DomainCA:
		meta["country"] = "CA"
		return "reload", meta, nil
	case domain.DomainACL:
		return "acl", meta, nil
	}
	return id.String() + "_reload", meta, nil
}

func selectDomain(args []string, country string) (map[string]any, error) {
	meta := map[string]any{"country": country}
	if len(args) == 1 {
		id, err := domain.ParseDomainID(args[0])
		if err != nil {
			return nil, err
		}
		meta["domain"] = id.String()
	}
	return meta, nil
}

func openInput(path string) (*os.File, string, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, "stdin", func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, err
	}
	return f, filepath.Base(path), func() { _ = f.Close() }, nil
}
