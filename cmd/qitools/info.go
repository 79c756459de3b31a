package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"qitools/pkg/mapstats"
	"qitools/pkg/volume"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE...",
		Short: "Prints volume headers and optional statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mask *volume.Volume
			if a.cfg.Output.Stats && a.mask != "" {
				m, err := volume.Read(a.mask)
				if err != nil {
					return err
				}
				mask = m
			}

			out := cmd.OutOrStdout()
			for _, path := range args {
				hdr, err := volume.ReadHeader(path)
				if err != nil {
					return err
				}
				printHeader(out, path, hdr)
				if !a.cfg.Output.Stats {
					continue
				}

				v, err := volume.Read(path)
				if err != nil {
					return err
				}
				summaries, err := mapstats.ComputeAll(path, v, mask)
				if err != nil {
					return err
				}
				if err := mapstats.WriteTable(out, summaries); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printHeader(w io.Writer, path string, hdr *volume.Header) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  Size:        %v\n", hdr.Size)
	fmt.Fprintf(w, "  Components:  %d\n", hdr.Components)
	fmt.Fprintf(w, "  Spacing:     %v\n", hdr.Spacing)
	fmt.Fprintf(w, "  Origin:      %v\n", hdr.Origin)
	fmt.Fprintf(w, "  Direction:   %v\n", hdr.Direction)
	fmt.Fprintf(w, "  Compression: %s\n", hdr.Compression)
	if hdr.Checksum != "" {
		fmt.Fprintf(w, "  Checksum:    %s\n", hdr.Checksum)
	}
	if hdr.Description != "" {
		fmt.Fprintf(w, "  Description: %s\n", hdr.Description)
	}
}
