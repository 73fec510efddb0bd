// commands/surveys.go
package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	listDownloaded bool
)

func init() {
	surveysCmd.Flags().BoolVar(&listDownloaded, "downloaded", false, "list the archives already downloaded instead of the remote index")
	rootCmd.AddCommand(surveysCmd, loadsCmd)
}

var surveysCmd = &cobra.Command{
	Use:   "surveys",
	Short: "Prints the surveys in the catalog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		surveys, err := a.pipeline.Surveys(cmd.Context(), listDownloaded)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Year", "Survey ID", "State", "Archive"})
		for _, s := range surveys {
			t.AppendRow(table.Row{s.Year, s.ID, s.State(), s.ArchivePath()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return err
	},
}

var loadsCmd = &cobra.Command{
	Use:   "loads",
	Short: "Prints the load log of the output target.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		loads, err := a.pipeline.Loads(cmd.Context())
		if err != nil {
			return err
		}
		if len(loads) == 0 {
			fmt.Println("No surveys loaded yet.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Year", "Survey ID", "Archive", "Tables", "Loaded At"})
		for _, l := range loads {
			t.AppendRow(table.Row{l.Year, l.SurveyID, l.ArchiveFile, l.Tables, l.LoadedAt.Local().Format("2006-01-02 15:04")})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
