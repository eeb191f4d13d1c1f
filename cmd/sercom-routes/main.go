// Command sercom-routes lists and checks SAMD21 SERCOM SPI-slave pin routes
// on the host.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sercomspi-go/drivers/sercomspi"
	"sercomspi-go/errcode"
)

var (
	variantName   string
	listInstance  int
	checkInstance int
	pinNames      [4]string

	rootCmd = &cobra.Command{
		Use:   "sercom-routes",
		Short: "SAMD21 SERCOM SPI-slave pin routes",
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the candidate pins per SERCOM and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := sercomspi.ParseVariant(variantName)
			if !ok {
				return fmt.Errorf("unknown variant %q", variantName)
			}
			out := cmd.OutOrStdout()
			for n := sercomspi.Instance(0); n < sercomspi.NumInstances; n++ {
				if listInstance >= 0 && int(n) != listInstance {
					continue
				}
				if !v.HasInstance(n) {
					fmt.Fprintf(out, "%s: not on %s\n", n, v)
					continue
				}
				fmt.Fprintf(out, "%s (irq %d)\n", n, n.IRQ())
				for _, r := range sercomspi.Roles() {
					var names []string
					for _, p := range sercomspi.Candidates(n, r) {
						if !v.HasPin(p) {
							continue
						}
						m, _ := sercomspi.Resolve(n, r, p)
						names = append(names, fmt.Sprintf("%s/%s", p, m.Function))
					}
					fmt.Fprintf(out, "  %-4s %s\n", r, strings.Join(names, " "))
				}
			}
			return nil
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Resolve a MOSI/SCK/SS/MISO selection to its mux settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, ok := sercomspi.ParseVariant(variantName)
			if !ok {
				return fmt.Errorf("unknown variant %q", variantName)
			}
			if checkInstance < 0 || checkInstance >= sercomspi.NumInstances {
				return errcode.Wrap(errcode.UnsupportedInstance, "check", sercomspi.ErrUnsupportedInstance)
			}
			n := sercomspi.Instance(checkInstance)
			if !v.HasInstance(n) {
				return errcode.Wrap(errcode.UnsupportedInstance, "check", sercomspi.ErrUnsupportedInstance)
			}

			var pins [4]sercomspi.Pin
			for i, s := range pinNames {
				p, ok := sercomspi.ParsePin(s)
				if !ok || !v.HasPin(p) {
					return fmt.Errorf("%s: %s pin %q: %w", errcode.InvalidPinSelection, sercomspi.Role(i), s, sercomspi.ErrInvalidPinSelection)
				}
				pins[i] = p
			}
			mux, err := sercomspi.ResolvePinout(n, sercomspi.Pinout{MOSI: pins[0], SCK: pins[1], SS: pins[2], MISO: pins[3]})
			if err != nil {
				return errcode.Wrap(errcode.Of(err), "check", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range mux {
				fmt.Fprintf(out, "%-4s %s  pad %d  function %s  %s.PMUX[%d].%s  %s.PINCFG[%d]\n",
					m.Role, m.Pin, m.Pad, m.Function, m.Port, m.Register, nibble(m.Odd), m.Port, m.Index)
			}
			return nil
		},
	}
)

func nibble(odd bool) string {
	if odd {
		return "PMUXO"
	}
	return "PMUXE"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&variantName, "variant", "any", "chip variant (samd21e, samd21g, samd21j, any)")

	listCmd.Flags().IntVarP(&listInstance, "sercom", "s", -1, "only this SERCOM instance")

	checkCmd.Flags().IntVarP(&checkInstance, "sercom", "s", 0, "SERCOM instance")
	for i, r := range sercomspi.Roles() {
		checkCmd.Flags().StringVar(&pinNames[i], strings.ToLower(r.String()), "", r.String()+" pin, e.g. PA08")
		_ = checkCmd.MarkFlagRequired(strings.ToLower(r.String()))
	}

	rootCmd.AddCommand(listCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
