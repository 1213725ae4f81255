// Package manager provides list and delete operations over local article files and
// the files already uploaded to the vector store, plus an interactive menu.
package manager

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"kbsync/internal/hashstore"
	"kbsync/internal/logger"
	"kbsync/internal/storage"
	"kbsync/internal/validator"
	"kbsync/internal/vectorstore"
	"kbsync/pkg/utils"
)

// nameWidth bounds the file name column.
const nameWidth = 60

// ErrMirrorDrift is returned by Verify when local files disagree with the stored hashes.
var ErrMirrorDrift = errors.New("local files differ from sync state")

// ErrNoRemote is returned for index operations when no vector store is configured.
var ErrNoRemote = errors.New("no vector store configured (set VECTOR_STORE_ID)")

// Manager operates on one article directory and, optionally, one vector store.
type Manager struct {
	articles *storage.ArticleStore
	remote   vectorstore.FileManager
	hashes   hashstore.Store
	logger   *logger.Logger
	text     *utils.StringHelper
	out      io.Writer
	indexID  string
}

// Options wires a Manager. Remote and IndexID may be empty for local-only use.
type Options struct {
	Articles *storage.ArticleStore
	Remote   vectorstore.FileManager
	Hashes   hashstore.Store
	Logger   *logger.Logger
	Out      io.Writer
	IndexID  string
}

// New creates a manager.
func New(opts Options) *Manager {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &Manager{
		articles: opts.Articles,
		remote:   opts.Remote,
		hashes:   opts.Hashes,
		logger:   opts.Logger,
		text:     utils.NewStringHelper(),
		out:      out,
		indexID:  opts.IndexID,
	}
}

func (m *Manager) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(m.out)
	t.SetStyle(table.StyleRounded)

	return t
}

// ListLocal prints the stored article files.
func (m *Manager) ListLocal() (int, error) {
	names, err := m.articles.List()
	if err != nil {
		return 0, err
	}

	if len(names) == 0 {
		fmt.Fprintf(m.out, "No files in %s\n", m.articles.Dir())
		return 0, nil
	}

	t := m.newTable()
	t.AppendHeader(table.Row{"#", "File", "Size", "Modified"})

	for i, name := range names {
		size, modified := "-", "-"
		if info, err := os.Stat(m.articles.Path(name)); err == nil {
			size = fmt.Sprintf("%d B", info.Size())
			modified = info.ModTime().Format("2006-01-02 15:04")
		}

		t.AppendRow(table.Row{i + 1, m.text.TruncateWidth(name, nameWidth), size, modified})
	}

	t.AppendFooter(table.Row{"", "Total", len(names), ""})
	t.Render()

	return len(names), nil
}

// DeleteLocal removes one article file.
func (m *Manager) DeleteLocal(name string) error {
	if err := m.articles.Delete(name); err != nil {
		return err
	}

	m.logger.Info("Deleted local file", "file", name)
	fmt.Fprintf(m.out, "Deleted %s\n", name)

	return nil
}

// DeleteAllLocal removes every article file.
func (m *Manager) DeleteAllLocal() (int, error) {
	n, err := m.articles.DeleteAll()
	if err != nil {
		return n, err
	}

	m.logger.Info("Deleted all local files", "count", n)
	fmt.Fprintf(m.out, "Deleted %d files\n", n)

	return n, nil
}

// Verify checks every local file against its stored fingerprint and prints the
// problems found. It returns ErrMirrorDrift when a file is missing or was modified.
func (m *Manager) Verify(ctx context.Context) (*validator.ValidationResult, error) {
	hashes, err := m.hashes.Load(ctx)
	if err != nil {
		return nil, err
	}

	result, err := validator.NewMirrorValidator(m.articles).Validate(hashes)
	if err != nil {
		return nil, err
	}

	if len(result.Errors) > 0 {
		t := m.newTable()
		t.AppendHeader(table.Row{"Slug", "Issue", "Detail"})

		for _, e := range result.Errors {
			t.AppendRow(table.Row{m.text.TruncateWidth(e.Slug, nameWidth), e.Kind, e.Message})
		}

		t.Render()
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(m.out, "Warning: %s\n", w)
	}

	s := result.Stats
	fmt.Fprintf(m.out, "Checked %d files against %d hashes: %d ok, %d modified, %d missing, %d untracked\n",
		s.TotalFiles, s.TotalHashes, s.Valid, s.Modified, s.Missing, s.Untracked)

	if !result.IsValid {
		m.logger.Warn("Local mirror drift", "modified", s.Modified, "missing", s.Missing)
		return result, ErrMirrorDrift
	}

	return result, nil
}

func (m *Manager) requireRemote() error {
	if m.remote == nil || m.indexID == "" {
		return ErrNoRemote
	}

	return nil
}

// ListRemote prints the files attached to the vector store.
func (m *Manager) ListRemote(ctx context.Context) (int, error) {
	if err := m.requireRemote(); err != nil {
		return 0, err
	}

	files, err := m.remote.ListFiles(ctx, m.indexID)
	if err != nil {
		return 0, err
	}

	if len(files) == 0 {
		fmt.Fprintf(m.out, "No files in vector store %s\n", m.indexID)
		return 0, nil
	}

	t := m.newTable()
	t.AppendHeader(table.Row{"#", "File ID", "Status", "Bytes", "Created"})

	for i, f := range files {
		t.AppendRow(table.Row{i + 1, f.ID, f.Status, f.UsageBytes, f.CreatedAt.Format("2006-01-02 15:04")})
	}

	t.AppendFooter(table.Row{"", "Total", len(files), "", ""})
	t.Render()

	return len(files), nil
}

// DeleteRemote removes one file from the vector store.
func (m *Manager) DeleteRemote(ctx context.Context, fileID string) error {
	if err := m.requireRemote(); err != nil {
		return err
	}

	if err := m.remote.DeleteFile(ctx, m.indexID, fileID); err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Deleted %s from %s\n", fileID, m.indexID)

	return nil
}

// DeleteAllRemote removes every file from the vector store.
func (m *Manager) DeleteAllRemote(ctx context.Context) (int, error) {
	if err := m.requireRemote(); err != nil {
		return 0, err
	}

	n, err := m.remote.DeleteAllFiles(ctx, m.indexID)
	fmt.Fprintf(m.out, "Deleted %d files from %s\n", n, m.indexID)

	return n, err
}

// Reset clears the stored fingerprints so the next run treats every article as new.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.hashes.Save(ctx, hashstore.Hashes{}); err != nil {
		return fmt.Errorf("failed to reset hashes: %w", err)
	}

	m.logger.Info("Sync state reset")
	fmt.Fprintln(m.out, "Sync state reset; the next run re-uploads every article")

	return nil
}

var menuItems = []struct {
	key   string
	label string
}{
	{"1", "List local files"},
	{"2", "Delete a local file"},
	{"3", "Delete all local files"},
	{"4", "List vector store files"},
	{"5", "Delete a vector store file"},
	{"6", "Delete all vector store files"},
	{"7", "Reset sync state"},
	{"8", "Verify local files"},
	{"0", "Exit"},
}

// Interactive runs the numbered menu until the user exits or in is exhausted.
// Operation errors are printed and the menu continues.
func (m *Manager) Interactive(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)

	prompt := func(msg string) (string, bool) {
		fmt.Fprint(m.out, msg)

		if !scanner.Scan() {
			return "", false
		}

		return strings.TrimSpace(scanner.Text()), true
	}

	confirm := func(what string) bool {
		answer, ok := prompt(fmt.Sprintf("Delete %s? Type 'yes' to confirm: ", what))
		return ok && strings.EqualFold(answer, "yes")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(m.out, "\n=== Knowledge Base File Manager ===")

		for _, item := range menuItems {
			fmt.Fprintf(m.out, "  %s%s\n", m.text.PadRight(item.key+")", 4), item.label)
		}

		choice, ok := prompt("Select an option: ")
		if !ok {
			return scanner.Err()
		}

		var err error

		switch choice {
		case "1":
			_, err = m.ListLocal()
		case "2":
			name, ok := prompt("File name: ")
			if ok && name != "" {
				err = m.DeleteLocal(name)
			}
		case "3":
			if confirm("all local files") {
				_, err = m.DeleteAllLocal()
			} else {
				fmt.Fprintln(m.out, "Cancelled")
			}
		case "4":
			_, err = m.ListRemote(ctx)
		case "5":
			id, ok := prompt("File ID: ")
			if ok && id != "" {
				err = m.DeleteRemote(ctx, id)
			}
		case "6":
			if confirm("all vector store files") {
				_, err = m.DeleteAllRemote(ctx)
			} else {
				fmt.Fprintln(m.out, "Cancelled")
			}
		case "7":
			if confirm("the sync state") {
				err = m.Reset(ctx)
			} else {
				fmt.Fprintln(m.out, "Cancelled")
			}
		case "8":
			_, err = m.Verify(ctx)
		case "0", "q", "exit":
			fmt.Fprintln(m.out, "Bye")
			return nil
		default:
			fmt.Fprintf(m.out, "Unknown option %q\n", choice)
		}

		if err != nil {
			fmt.Fprintf(m.out, "Error: %v\n", err)
		}
	}
}
