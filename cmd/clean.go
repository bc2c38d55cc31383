package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/thermosentinel/internal/utils"
	"github.com/spf13/cobra"
)

var (
	cleanSnapshots bool
	cleanOutput    bool
	cleanYes       bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove leftover snapshots and annotated frames",
	Long:  "Deletes snapshot files left in the work directory (e.g. by keep_snapshots or a crash) and the annotated output frames. By default, it cleans both.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing EVERYTHING
		if !cleanSnapshots && !cleanOutput {
			cleanSnapshots = true
			cleanOutput = true
		}

		reader := bufio.NewReader(os.Stdin)

		if cleanSnapshots {
			files := snapshotFiles(Cfg.Capture.WorkDir)
			if len(files) > 0 && (cleanYes || confirm(reader, fmt.Sprintf("⚠️  Delete %d snapshot file(s) in %s?", len(files), Cfg.Capture.WorkDir))) {
				fmt.Println("🗑️  Clearing Snapshots...")
				removeAll(files)
			}
		}

		if cleanOutput && Cfg.Output.Dir != "" {
			files := outputFiles(Cfg.Output.Dir)
			if len(files) > 0 && (cleanYes || confirm(reader, fmt.Sprintf("⚠️  Delete %d annotated frame(s) in %s?", len(files), Cfg.Output.Dir))) {
				fmt.Println("🗑️  Clearing Annotated Frames...")
				removeAll(files)
			}
		}

		fmt.Println("✨ Clean Complete.")
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanSnapshots, "snapshots", false, "Clear snapshot files in the work directory")
	cleanCmd.Flags().BoolVar(&cleanOutput, "output", false, "Clear annotated frames in the output directory")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}

// snapshotFiles lists the per-cycle snapshot files in dir. Nothing else in
// a shared work directory (usually the system temp dir) is touched.
func snapshotFiles(dir string) []string {
	var files []string
	for _, pattern := range []string{"vis_*.jpg", "thermal_*.jpg"} {
		m, _ := filepath.Glob(filepath.Join(dir, pattern))
		files = append(files, m...)
	}
	return files
}

func outputFiles(dir string) []string {
	m, _ := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	return m
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeAll(paths []string) {
	if err := utils.RemoveFiles(paths...); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove some files: %v\n", err)
	}
}
