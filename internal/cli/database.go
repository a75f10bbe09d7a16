package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/smegmarip/photo-organizer/internal/cache"
	"github.com/smegmarip/photo-organizer/internal/config"
	"github.com/smegmarip/photo-organizer/internal/organize"
	"github.com/smegmarip/photo-organizer/internal/roster"
)

// ============================================================================
// database Command
// ============================================================================

func newDatabaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "database",
		Short: "Manage the database of known people interactively",
		Long: `Interactive menu for the people database. Adding a person submits their
reference photo to the vision service once; the stored gear description is
what organize runs match against.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatabase(cmd)
		},
	}
}

// menu is the interactive session state.
type menu struct {
	ctx    context.Context
	in     *bufio.Scanner
	out    io.Writer
	fs     afero.Fs
	people *roster.Roster

	// describe is built lazily on the first add, since only adds need
	// vision credentials.
	describe roster.DescribeFunc
}

func runDatabase(cmd *cobra.Command) error {
	fs := afero.NewOsFs()
	people, err := roster.Load(fs, roster.FileName)
	if err != nil {
		return err
	}

	m := &menu{
		ctx:    cmd.Context(),
		in:     bufio.NewScanner(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
		fs:     fs,
		people: people,
	}
	return m.loop()
}

// loop shows the menu until the user exits or input ends.
func (m *menu) loop() error {
	for {
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "==================================================")
		fmt.Fprintln(m.out, "Face Database Management")
		fmt.Fprintln(m.out, "==================================================")
		fmt.Fprintf(m.out, "People registered: %d\n", m.people.Len())
		fmt.Fprintln(m.out)
		fmt.Fprintln(m.out, "1. Add person")
		fmt.Fprintln(m.out, "2. Remove person")
		fmt.Fprintln(m.out, "3. List people")
		fmt.Fprintln(m.out, "4. Show person details")
		fmt.Fprintln(m.out, "5. Database statistics")
		fmt.Fprintln(m.out, "6. Validate reference images")
		fmt.Fprintln(m.out, "7. Exit")
		fmt.Fprintln(m.out)

		choice, ok := m.prompt("Select an option (1-7): ")
		if !ok {
			// EOF: leave quietly, the roster is already saved.
			fmt.Fprintln(m.out)
			return nil
		}

		switch strings.TrimSpace(choice) {
		case "1":
			m.addPerson()
		case "2":
			m.removePerson()
		case "3":
			m.listPeople()
		case "4":
			m.showPerson()
		case "5":
			m.showStats()
		case "6":
			m.validate()
		case "7":
			fmt.Fprintln(m.out, "Goodbye.")
			return nil
		default:
			fmt.Fprintln(m.out, "Please enter a number between 1 and 7.")
		}
	}
}

// prompt prints a prompt and reads one line; ok is false on EOF.
func (m *menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return m.in.Text(), true
}

func (m *menu) addPerson() {
	name, ok := m.prompt("Name: ")
	if !ok || strings.TrimSpace(name) == "" {
		fmt.Fprintln(m.out, "A name is required.")
		return
	}
	refPath, ok := m.prompt("Reference image path: ")
	if !ok || strings.TrimSpace(refPath) == "" {
		fmt.Fprintln(m.out, "A reference image is required.")
		return
	}
	notes, _ := m.prompt("Notes (optional): ")

	describe, err := m.describeFunc()
	if err != nil {
		fmt.Fprintf(m.out, "Cannot reach the vision service: %v\n", err)
		return
	}

	fmt.Fprintln(m.out, "Analyzing reference image...")
	entry, err := m.people.Add(m.ctx, strings.TrimSpace(name), strings.TrimSpace(refPath), strings.TrimSpace(notes), describe)
	if err != nil {
		fmt.Fprintf(m.out, "Failed to add person: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "Added %s.\n", entry.Name)
	fmt.Fprintf(m.out, "Gear description: %s\n", entry.Description)
}

// describeFunc builds the cache-fronted describe pipeline on first use.
func (m *menu) describeFunc() (roster.DescribeFunc, error) {
	if m.describe != nil {
		return m.describe, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	client, err := newVisionClient(m.ctx, cfg)
	if err != nil {
		return nil, err
	}
	analysisCache, err := cache.Load(m.fs, cache.FileName)
	if err != nil {
		return nil, err
	}
	engine := organize.New(cfg, m.fs, client, analysisCache)

	m.describe = func(ctx context.Context, path string) (string, error) {
		description, err := engine.DescribeReference(ctx, path)
		if flushErr := analysisCache.Flush(); flushErr != nil {
			fmt.Fprintf(m.out, "Warning: could not save analysis cache: %v\n", flushErr)
		}
		return description, err
	}
	return m.describe, nil
}

func (m *menu) removePerson() {
	name, ok := m.prompt("Name to remove: ")
	if !ok || strings.TrimSpace(name) == "" {
		return
	}
	confirm, ok := m.prompt(fmt.Sprintf("Remove %q? (y/n): ", strings.TrimSpace(name)))
	if !ok || !strings.EqualFold(strings.TrimSpace(confirm), "y") {
		fmt.Fprintln(m.out, "Cancelled.")
		return
	}
	if err := m.people.Remove(strings.TrimSpace(name)); err != nil {
		fmt.Fprintf(m.out, "Failed to remove person: %v\n", err)
		return
	}
	fmt.Fprintln(m.out, "Removed.")
}

func (m *menu) listPeople() {
	entries := m.people.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(m.out, "No people registered yet.")
		return
	}
	fmt.Fprintf(m.out, "%d people:\n", len(entries))
	for _, e := range entries {
		created := ""
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Format("2006-01-02")
		}
		fmt.Fprintf(m.out, "  - %s %s\n", e.Name, created)
	}
}

func (m *menu) showPerson() {
	name, ok := m.prompt("Name: ")
	if !ok {
		return
	}
	entry, found := m.people.Get(strings.TrimSpace(name))
	if !found {
		fmt.Fprintf(m.out, "No person named %q.\n", strings.TrimSpace(name))
		return
	}
	fmt.Fprintf(m.out, "Name:        %s\n", entry.Name)
	fmt.Fprintf(m.out, "Description: %s\n", entry.Description)
	for _, ref := range entry.ReferencePaths {
		fmt.Fprintf(m.out, "Reference:   %s\n", ref)
	}
	if entry.Notes != "" {
		fmt.Fprintf(m.out, "Notes:       %s\n", entry.Notes)
	}
	if !entry.CreatedAt.IsZero() {
		fmt.Fprintf(m.out, "Added:       %s\n", entry.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func (m *menu) showStats() {
	stats := m.people.Stats()
	fmt.Fprintf(m.out, "People:             %d\n", stats.People)
	fmt.Fprintf(m.out, "With notes:         %d\n", stats.WithNotes)
	fmt.Fprintf(m.out, "Missing references: %d\n", stats.MissingRefs)
}

func (m *menu) validate() {
	issues := m.people.Validate()
	if len(issues) == 0 {
		fmt.Fprintln(m.out, "All entries look good.")
		return
	}
	fmt.Fprintf(m.out, "%d problem(s) found:\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(m.out, "  - %s: %s\n", issue.Name, issue.Problem)
	}
}
