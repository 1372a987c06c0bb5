package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliamunaev/facility-gateway/internal/app"
	"github.com/iliamunaev/facility-gateway/internal/config"
	"github.com/iliamunaev/facility-gateway/internal/model"
	"github.com/iliamunaev/facility-gateway/internal/validation"
)

var errInvalidPayload = errors.New("payload is invalid")

func newValidateCmd(configPath *string) *cobra.Command {
	var (
		file    string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a facility payload without submitting it",
		Long: `Validate runs the same checks as POST /facilities/validate.

Field checks always run. Unless --offline is given, the payload is also
checked against the provider's reference data using the configured provider.
The report is printed as JSON; the command fails when the payload is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return validateFile(cmd, cfg, file, offline)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "payload file, - for stdin")
	cmd.Flags().BoolVar(&offline, "offline", false, "run field checks only")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func validateFile(cmd *cobra.Command, cfg *config.Config, file string, offline bool) error {
	req, err := readPayload(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	errs := validation.NewFieldValidator().Check(req)
	if len(errs) == 0 && !offline {
		logger, err := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		// The journal is never written by a dry run.
		cfg.Journal.Backend = "memory"
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		errs, err = a.Facilities.Validate(cmd.Context(), req)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if len(errs) > 0 {
		if err := enc.Encode(model.ErrorResponse{StatusCode: 400, Message: "facility validation failed", ValidationErrors: errs}); err != nil {
			return err
		}
		return errInvalidPayload
	}
	return enc.Encode(model.ValidateResponse{Valid: true})
}

func readPayload(stdin io.Reader, file string) (model.FacilityRequest, error) {
	var req model.FacilityRequest

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode %s: %w", file, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("decode %s: unexpected data after the payload", file)
	}
	return req, nil
}
