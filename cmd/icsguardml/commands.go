package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hed1ad/icsguardml/pkg/capture"
	"github.com/hed1ad/icsguardml/pkg/eval"
	"github.com/hed1ad/icsguardml/pkg/pipeline"
)

func newUnpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack",
		Short: "Verify and extract the dataset distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			sum, err := pipeline.New(cfg, log).Unpack(cmd.Context())
			if sum != nil {
				fmt.Printf("archives seen %d, verified %d, extracted %d, failed %d\n",
					sum.ArchivesSeen, sum.ArchivesVerified, sum.ArchivesExtracted, len(sum.Failed))
			}
			return err
		},
	}
}

func newTrainCmd() *cobra.Command {
	var window int
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and evaluate a classifier on one time window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if window > 0 {
				cfg.Dataset.Window = window
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			result, err := pipeline.New(cfg, log).Train(cmd.Context())
			if err != nil {
				return err
			}
			printReport(result.Report)
			fmt.Println("\nmodel:      ", result.ModelPath)
			fmt.Println("report:     ", result.ReportPath)
			fmt.Println("importance: ", result.ImportancePath)
			return nil
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 0, "time window in seconds (overrides config)")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <model-file>",
		Short: "Re-evaluate a saved model on its window's test split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			meta, rep, err := pipeline.New(cfg, log).Evaluate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("run %s, %dsec window, trained %s\n",
				meta.RunID, meta.Window, meta.CreatedAt.Format("2006-01-02 15:04:05"))
			printReport(rep)
			return nil
		},
	}
	return cmd
}

func newCaptureCmd() *cobra.Command {
	var (
		window int
		class  string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "capture <pcap-file>",
		Short: "Aggregate a pcap file into per-window sample tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := loadConfig(); err != nil {
				return err
			}

			table, err := capture.ReadFile(args[0], window)
			if err != nil {
				return err
			}
			path, err := capture.WriteSamples(outDir, class, window, table)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d window rows to %s\n", table.NumRows(), path)
			return nil
		},
	}
	cmd.Flags().IntVarP(&window, "window", "w", 1, "aggregation window in seconds")
	cmd.Flags().StringVar(&class, "class", "benign", "class label encoded into the output file name")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

// printReport renders the evaluation report as aligned text tables.
func printReport(rep *eval.Report) {
	fmt.Printf("accuracy %.4f, macro-F1 %.4f over %d rows\n\n", rep.Accuracy, rep.MacroF1, rep.Rows)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "class\tprecision\trecall\tf1\tsupport")
	for _, c := range rep.PerClass {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%d\n", c.Class, c.Precision, c.Recall, c.F1, c.Support)
	}
	w.Flush()

	if len(rep.Importance) > 0 {
		fmt.Println()
		fmt.Fprintln(w, "feature\tgain")
		limit := len(rep.Importance)
		if limit > 15 {
			limit = 15
		}
		for _, fi := range rep.Importance[:limit] {
			fmt.Fprintf(w, "%s\t%.4f\n", fi.Feature, fi.Gain)
		}
		w.Flush()
	}
}
