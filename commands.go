package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tournevent/fulfillment/internal/order"
	"github.com/tournevent/fulfillment/pkg/shipper"
	"gopkg.in/yaml.v3"
)

var outputFormat string

var (
	ratesTo     shipper.Address
	ratesWeight float64

	statusTracking string
	statusOverride bool
	statusReason   string
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Shop USPS and UPS rates for a package",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		items := []shipper.PackageItem{{
			Name:     "package",
			Quantity: 1,
			Weight:   shipper.Weight{Value: ratesWeight, Units: shipper.WeightOunces},
		}}
		set, err := a.service.ShopRates(cmd.Context(), ratesTo, items)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), set)
	},
}

var fulfillCmd = &cobra.Command{
	Use:   "fulfill ORDER_ID RATE_ID",
	Short: "Buy a label for one order at the chosen rate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		shipment, err := a.service.FulfillOrder(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), shipment)
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk ORDER_ID...",
	Short: "Buy labels for many orders using their stored shipping methods",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.service.FulfillBulk(cmd.Context(), args)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), res)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status ORDER_ID STATUS",
	Short: "Change an order's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := order.ParseStatus(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.service.UpdateStatus(cmd.Context(), args[0], status, order.TransitionOptions{
			Override:       statusOverride,
			TrackingNumber: statusTracking,
			Reason:         statusReason,
		})
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), orderSummary(o))
	},
}

var voidCmd = &cobra.Command{
	Use:   "void ORDER_ID",
	Short: "Void an order's label and cancel the order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.service.VoidLabel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), orderSummary(o))
	},
}

var trackCmd = &cobra.Command{
	Use:   "track ORDER_ID",
	Short: "Show the carrier status of an order's shipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := a.service.Tracking(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), info)
	},
}

func init() {
	f := ratesCmd.Flags()
	f.StringVar(&ratesTo.PostalCode, "to-postal-code", "", "destination postal code")
	f.StringVar(&ratesTo.State, "to-state", "", "destination state")
	f.StringVar(&ratesTo.City, "to-city", "", "destination city")
	f.StringVar(&ratesTo.Country, "to-country", "US", "destination country")
	f.BoolVar(&ratesTo.Residential, "residential", true, "residential destination")
	f.Float64Var(&ratesWeight, "weight", 1, "package weight in ounces")

	f = statusCmd.Flags()
	f.StringVar(&statusTracking, "tracking", "", "tracking number to record")
	f.BoolVar(&statusOverride, "override", false, "allow processing without a tracking number")
	f.StringVar(&statusReason, "reason", "", "reason recorded in the status history")

	rootCmd.AddCommand(ratesCmd, fulfillCmd, bulkCmd, statusCmd, voidCmd, trackCmd)
}

type summary struct {
	OrderID        string `json:"orderId" yaml:"orderId"`
	Status         string `json:"status" yaml:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty" yaml:"trackingNumber,omitempty"`
	ShipmentID     string `json:"shipmentId,omitempty" yaml:"shipmentId,omitempty"`
}

func orderSummary(o *order.Order) summary {
	return summary{
		OrderID:        o.OrderID,
		Status:         o.Status.String(),
		TrackingNumber: o.TrackingNumber,
		ShipmentID:     o.ShipmentID,
	}
}

func writeOutput(w io.Writer, v any) error {
	switch outputFormat {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
}
