package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vkngwrapper/menagerie/internal/vkng"
	"github.com/vkngwrapper/menagerie/internal/window"
)

func newDevicesCommand() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List physical devices and whether they can render to a window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			// Presentation support is per surface, so a hidden window stands in.
			win, err := window.New(window.Options{Title: cfg.Title, Width: 64, Height: 64, Hidden: true})
			if err != nil {
				return err
			}
			defer win.Destroy()

			inst, err := vkng.NewInstance(win.Handle(), vkng.Options{AppName: cfg.Title, Debug: cfg.Debug})
			if err != nil {
				return err
			}
			defer inst.Destroy()

			candidates, err := inst.Candidates()
			if err != nil {
				return err
			}

			var chosen string
			if c, err := vkng.Pick(candidates, f.device); err == nil {
				chosen = c.Properties.Name
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tNAME\tTYPE\tVENDOR\tDEVICE\tCACHE UUID\tSTATUS")
			for _, c := range candidates {
				p := c.Properties
				marker := ""
				if p.Name == chosen {
					marker = "*"
				}
				status := "ok"
				if !c.Suitable {
					status = c.Reason
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t0x%04x\t0x%04x\t%s\t%s\n",
					marker, p.Name, p.Type, p.VendorID, p.DeviceID, p.PipelineCacheUUID, status)
			}
			return w.Flush()
		},
	}
	f.register(cmd)
	return cmd
}
