// Package deck reads practice phrases from Anki .apkg packages.
package deck

import (
	"archive/zip"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrUnknownField is returned when a requested field is not in any note type.
var ErrUnknownField = errors.New("unknown field")

// Deck is an opened Anki package.
type Deck struct {
	path    string
	tempDir string
	db      *sql.DB

	Names  []string
	Models map[int64]*Model
	Notes  []*Note
}

// Model is an Anki note type.
type Model struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"flds"`
}

// Field is a field of a note type.
type Field struct {
	Name string `json:"name"`
	Ord  int    `json:"ord"`
}

// Note is one Anki note.
type Note struct {
	ID      int64
	ModelID int64
	Tags    string
	Fields  []string
}

// Phrase is a practice phrase taken from a note.
type Phrase struct {
	NoteID int64
	Text   string
	Tags   []string
}

// Open opens an .apkg file.
func Open(path string) (*Deck, error) {
	d := &Deck{
		path:   path,
		Models: make(map[int64]*Model),
	}

	tempDir, err := os.MkdirTemp("", "parler-deck-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	d.tempDir = tempDir

	if err := d.extract(); err != nil {
		d.Close()
		return nil, err
	}

	dbPath := filepath.Join(tempDir, "collection.anki21")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = filepath.Join(tempDir, "collection.anki2")
	}
	if _, err := os.Stat(dbPath); err != nil {
		d.Close()
		return nil, fmt.Errorf("%s: no collection in package", path)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d.db = db

	if err := d.loadCollection(); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.loadNotes(); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

// extract unzips the package into the temp dir.
func (d *Deck) extract() error {
	r, err := zip.OpenReader(d.path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		// Media files are not needed.
		if !strings.HasPrefix(f.Name, "collection.anki2") {
			continue
		}

		fpath := filepath.Join(d.tempDir, f.Name)
		if !strings.HasPrefix(fpath, filepath.Clean(d.tempDir)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", fpath)
		}

		if err := extractFile(f, fpath); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// loadCollection loads note types and deck names from the col table.
func (d *Deck) loadCollection() error {
	var models, decks string

	row := d.db.QueryRow("SELECT models, decks FROM col")
	if err := row.Scan(&models, &decks); err != nil {
		return fmt.Errorf("reading collection: %w", err)
	}

	var modelsMap map[string]json.RawMessage
	if err := json.Unmarshal([]byte(models), &modelsMap); err != nil {
		return fmt.Errorf("parsing models: %w", err)
	}
	for _, raw := range modelsMap {
		var m Model
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		sort.Slice(m.Fields, func(i, j int) bool { return m.Fields[i].Ord < m.Fields[j].Ord })
		d.Models[m.ID] = &m
	}

	var decksMap map[string]struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(decks), &decksMap); err != nil {
		return fmt.Errorf("parsing decks: %w", err)
	}
	for _, dk := range decksMap {
		if dk.Name != "" && dk.Name != "Default" {
			d.Names = append(d.Names, dk.Name)
		}
	}
	sort.Strings(d.Names)

	return nil
}

func (d *Deck) loadNotes() error {
	rows, err := d.db.Query("SELECT id, mid, tags, flds FROM notes ORDER BY id")
	if err != nil {
		return fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n Note
		var flds string
		if err := rows.Scan(&n.ID, &n.ModelID, &n.Tags, &flds); err != nil {
			return fmt.Errorf("scanning note: %w", err)
		}
		// Fields are separated by ASCII 31.
		n.Fields = strings.Split(flds, "\x1f")
		d.Notes = append(d.Notes, &n)
	}

	return rows.Err()
}

// Path returns the package path.
func (d *Deck) Path() string { return d.path }

// FieldNames returns the distinct field names across all note types, in field order.
func (d *Deck) FieldNames() []string {
	ids := make([]int64, 0, len(d.Models))
	for id := range d.Models {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	seen := make(map[string]bool)
	var names []string
	for _, id := range ids {
		for _, f := range d.Models[id].Fields {
			if !seen[strings.ToLower(f.Name)] {
				seen[strings.ToLower(f.Name)] = true
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// fieldValue returns the named field of n. An empty name selects the first field.
func (d *Deck) fieldValue(n *Note, name string) (string, bool) {
	if name == "" {
		if len(n.Fields) == 0 {
			return "", false
		}
		return n.Fields[0], true
	}

	m := d.Models[n.ModelID]
	if m == nil {
		return "", false
	}
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) && f.Ord < len(n.Fields) {
			return n.Fields[f.Ord], true
		}
	}
	return "", false
}

// Phrases returns the cleaned text of field from every note that has it.
// Empty and duplicate phrases are skipped.
func (d *Deck) Phrases(field string) ([]Phrase, error) {
	var out []Phrase
	seen := make(map[string]bool)
	matched := false

	for _, n := range d.Notes {
		raw, ok := d.fieldValue(n, field)
		if !ok {
			continue
		}
		matched = true

		text := CleanText(raw)
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, Phrase{NoteID: n.ID, Text: text, Tags: strings.Fields(n.Tags)})
	}

	if !matched && field != "" && len(d.Notes) > 0 {
		return nil, fmt.Errorf("%w %q (have %s)", ErrUnknownField, field, strings.Join(d.FieldNames(), ", "))
	}
	return out, nil
}

// Close removes the extracted files.
func (d *Deck) Close() error {
	if d.db != nil {
		d.db.Close()
	}
	if d.tempDir != "" {
		os.RemoveAll(d.tempDir)
	}
	return nil
}

var (
	soundTag = regexp.MustCompile(`\[sound:[^\]]*\]`)
	breakTag = regexp.MustCompile(`(?i)<br\s*/?>|</div>|</p>`)
	htmlTag  = regexp.MustCompile(`<[^>]*>`)
)

// CleanText strips Anki markup from a field value.
func CleanText(s string) string {
	s = soundTag.ReplaceAllString(s, "")
	s = breakTag.ReplaceAllString(s, " ")
	s = htmlTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
