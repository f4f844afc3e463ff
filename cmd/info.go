/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/allbin/labctl"
	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display information about a serial port including USB metadata.

Stable aliases are resolved, so the path from labctl.yaml can be passed
as is.

Examples:
  labctl info /dev/ttyACM0
  labctl info /dev/serial/by-id/usb-Newport_ESP301-if00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := labctl.GetPortInfo(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		fmt.Printf("Port Information: %s\n\n", infoStyle.Render(info.Path))
		fmt.Printf("  Name:        %s\n", info.Name)
		fmt.Printf("  Description: %s\n", info.Description)

		if info.VendorID != "" || info.ProductID != "" {
			fmt.Println("\nUSB Device Information:")
			if info.VendorID != "" {
				fmt.Printf("  Vendor ID:    %s\n", info.VendorID)
			}
			if info.ProductID != "" {
				fmt.Printf("  Product ID:   %s\n", info.ProductID)
			}
			if info.SerialNumber != "" {
				fmt.Printf("  Serial:       %s\n", info.SerialNumber)
			}
			if info.Product != "" {
				fmt.Printf("  Product:      %s\n", info.Product)
			}
		}

		if device, ok := rigAssignments()[info.Path]; ok {
			fmt.Printf("\nConfigured as %s\n", successStyle.Render(device))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
