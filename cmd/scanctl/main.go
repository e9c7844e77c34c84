package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wms-platform/scan-console/internal/application"
	"github.com/wms-platform/scan-console/internal/config"
	"github.com/wms-platform/scan-console/internal/domain"
	"github.com/wms-platform/scan-console/internal/infrastructure/wmsclient"
	"github.com/wms-platform/scan-console/pkg/contracts"
	"github.com/wms-platform/scan-console/pkg/logging"
)

var errGateRejected = errors.New("confirmation code does not match")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scanctl",
		Short:         "Offline tools for scan decoding, pick diffs and confirmation codes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newDecodeCmd(), newDiffCmd(), newCodeCmd(), newProbeCmd())
	return root
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <raw...>",
		Short: "Decode one or more raw scans",
		Long:  `Decodes each argument with the local barcode grammar and prints one JSON object per line.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, raw := range args {
				if err := enc.Encode(domain.DecodeBarcode(raw)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newDiffCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Reconcile a pick task snapshot",
		Long:  `Reads a pick task JSON snapshot from --file (or stdin when omitted or "-") and prints its diff.
The snapshot is checked against the pick task schema first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open task snapshot: %w", err)
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read task snapshot: %w", err)
			}
			if err := contracts.ValidatePickTaskSnapshot(data); err != nil {
				return err
			}

			var task domain.PickTask
			if err := json.Unmarshal(data, &task); err != nil {
				return fmt.Errorf("failed to decode task snapshot: %w", err)
			}

			return writeJSON(cmd.OutOrStdout(), application.ToPickTaskDiffDTO(domain.ComputeTaskDiff(task)))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "task snapshot JSON file")
	return cmd
}

func newCodeCmd() *cobra.Command {
	var (
		ref    string
		taskID int
		input  string
	)

	cmd := &cobra.Command{
		Use:   "code",
		Short: "Print the confirmation code of a task",
		Long: `Prints the code an operator must enter to commit a task. With --input the
entered code is checked as well and the command fails when it does not match.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskID < 1 {
				return errors.New("--task-id must be a positive integer")
			}

			expected := domain.ExpectedConfirmationCode(ref, taskID)
			fmt.Fprintln(cmd.OutOrStdout(), expected)

			if !cmd.Flags().Changed("input") {
				return nil
			}
			if !domain.CanCommit(input, expected) {
				fmt.Fprintln(cmd.OutOrStdout(), "REJECTED")
				return errGateRejected
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "task reference, e.g. ORD:PDD:1:A1")
	cmd.Flags().IntVar(&taskID, "task-id", 0, "pick task id")
	cmd.Flags().StringVar(&input, "input", "", "code entered by the operator")
	_ = cmd.MarkFlagRequired("task-id")
	return cmd
}

// newProbeCmd resolves a barcode against the configured backend
func newProbeCmd() *cobra.Command {
	var (
		mode        string
		warehouseID int
	)

	cmd := &cobra.Command{
		Use:   "probe <barcode>",
		Short: "Resolve a barcode against the WMS backend without committing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logConfig := logging.DefaultConfig("scanctl")
			logConfig.Level = logging.ParseLevel(cfg.LogLevel)
			logConfig.Output = cmd.ErrOrStderr()
			logger := logging.New(logConfig)

			client := wmsclient.New(wmsclient.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout}, nil, logger, nil)
			service := application.NewScanConsoleService(client, client, client, application.Options{
				DefaultWarehouseID: cfg.Probe.DefaultWarehouseID,
				DeviceID:           cfg.Probe.DeviceID,
			}, logger, nil)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			result, probeErr := service.Probe(ctx, application.ProbeCommand{
				Mode:        strings.TrimSpace(mode),
				Barcode:     args[0],
				WarehouseID: warehouseID,
			})
			if result.Status != "" {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			return probeErr
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(domain.ScanModePick), "scan mode: receive, pick, count or items")
	cmd.Flags().IntVar(&warehouseID, "warehouse-id", 0, "warehouse id (defaults to DEFAULT_WAREHOUSE_ID)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
