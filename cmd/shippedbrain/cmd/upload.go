package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/oshokin/shippedbrain/internal/config"
	"github.com/oshokin/shippedbrain/internal/service/publisher"
)

var (
	errUploadRejected   = errors.New("upload rejected by the platform")
	errPasswordRequired = errors.New("password is required")
)

type uploadOptions struct {
	flavor        string
	email         string
	password      string
	passwordStdin bool
}

func newUploadCmd() *cobra.Command {
	opts := &uploadOptions{}

	command := &cobra.Command{
		Use:   "upload <run-id> <model-name>",
		Short: "Validate, package and upload the model logged under a run.",
		Long: `Publishes the model logged under <run-id> as <model-name>.

The run must be FINISHED and its model must have been logged with a signature
and an input example. When no password is given and stdin is a terminal, the
password is prompted for.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			password, err := opts.resolvePassword(cmd)
			if err != nil {
				return err
			}

			response, err := publisher.Run(ctx, &publisher.Options{
				RunID:       args[0],
				ModelName:   args[1],
				Flavor:      opts.flavor,
				Email:       opts.email,
				Password:    password,
				ConfigPath:  configPath,
				TrackingURI: trackingURI,
			})
			if err != nil {
				return err
			}

			defer func() {
				_ = response.Body.Close()
			}()

			body, err := io.ReadAll(response.Body)
			if err != nil {
				return fmt.Errorf("read upload response: %w", err)
			}

			if response.StatusCode < 200 || response.StatusCode > 299 {
				printFailure(cmd.OutOrStdout(), fmt.Sprintf("upload of %q failed: %s\n%s\n", args[1], response.Status, body))
				return fmt.Errorf("%w: %s", errUploadRejected, response.Status)
			}

			printSuccess(cmd.OutOrStdout(), fmt.Sprintf("model %q uploaded: %s\n", args[1], response.Status))

			if len(body) > 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(body))
			}

			return nil
		},
	}

	command.Flags().StringVarP(&opts.flavor, "flavor", "f", "", "model flavor, see the flavors command (default pyfunc)")
	command.Flags().StringVarP(&opts.email, "email", "e", "", "platform account email (default $"+config.EnvEmail+")")
	command.Flags().StringVarP(&opts.password, "password", "p", "", "platform account password (default $"+config.EnvPassword+")")
	command.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "read the password from stdin")

	return command
}

// resolvePassword picks the password from the flag, stdin or an interactive prompt.
// An empty result leaves the environment fallback to the publisher.
func (o *uploadOptions) resolvePassword(cmd *cobra.Command) (string, error) {
	switch {
	case o.password != "":
		return o.password, nil
	case o.passwordStdin:
		contents, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}

		password := strings.TrimRight(string(contents), "\r\n")
		if password == "" {
			return "", errPasswordRequired
		}

		return password, nil
	case os.Getenv(config.EnvPassword) != "":
		return "", nil
	}

	file, ok := cmd.InOrStdin().(interface{ Fd() uintptr })
	if !ok || !term.IsTerminal(int(file.Fd())) { //nolint:gosec // File descriptors fit in int.
		return "", nil
	}

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	password, err := term.ReadPassword(int(file.Fd())) //nolint:gosec // File descriptors fit in int.

	_, _ = fmt.Fprintln(cmd.ErrOrStderr())

	if err != nil {
		return "", fmt.Errorf("read password from terminal: %w", err)
	}

	return string(password), nil
}
