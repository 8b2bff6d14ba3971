package hashdb

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// WriteReport writes a human readable description of the database to
// w: markers, header, schema, entry count and a sample of recent rows.
// Marker values that fail their predicate are wrapped in !!! so they
// stand out in a terminal.
func (i *Info) WriteReport(w io.Writer) error {
	var b strings.Builder

	b.WriteString("Application Id: " + i.prettyApplicationID() + "\n")
	b.WriteString("Database Version: " + i.prettyUserVersion() + "\n")
	b.WriteString("Name: " + prettyText(i.Name) + "\n")
	b.WriteString("Description:\n")
	b.WriteString("    " + prettyText(i.Description) + "\n")
	b.WriteString("UUID: " + i.UUID.String() + "\n")
	b.WriteString("Columns: " + strings.Join(i.Columns, ", ") + "\n")
	if i.HasIdealIndex() {
		b.WriteString("Has Ideal Index: Yes\n")
	} else {
		b.WriteString("Has Ideal Index: No\n")
	}
	b.WriteString("Indexes:\n")
	for _, idx := range i.Indexes {
		b.WriteString("    " + idx.Name + ": " + strings.Join(idx.Columns, ", ") + "\n")
	}
	b.WriteString("Entries: " + FormatCount(i.Entries) + "\n")

	b.WriteString(strings.Join(i.Columns, "\t") + "\n")
	for _, row := range i.Sample {
		b.WriteString(strings.Join(row, ", ") + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (i *Info) prettyApplicationID() string {
	pretty := fmt.Sprintf("%#x", i.ApplicationID)
	if i.FormatIDCorrect() {
		return pretty
	}
	return "!!!" + pretty + "!!!"
}

func (i *Info) prettyUserVersion() string {
	pretty := strconv.FormatInt(i.UserVersion, 10)
	if i.VersionUnderstood() {
		return pretty
	}
	return "!!!" + pretty + "!!!"
}

func prettyText(s string) string {
	if s == "" {
		return "<None>"
	}
	return "\"" + s + "\""
}

type jsonIndex struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

type jsonReport struct {
	ApplicationID   int64       `json:"application_id"`
	ApplicationIDOK bool        `json:"application_id_ok"`
	DBVersion       int64       `json:"db_version"`
	DBVersionOK     bool        `json:"db_version_ok"`
	Name            string      `json:"name,omitempty"`
	Description     string      `json:"description,omitempty"`
	UUID            string      `json:"uuid"`
	Columns         []string    `json:"columns"`
	Entries         int64       `json:"entries"`
	HasIdealIndex   bool        `json:"has_ideal_index"`
	Indexes         []jsonIndex `json:"indexes"`
	Sample          [][]string  `json:"sample"`
}

// WriteJSON writes the machine readable form of the description to w.
// Empty name and description fields are omitted.
func (i *Info) WriteJSON(w io.Writer) error {
	indexes := make([]jsonIndex, 0, len(i.Indexes))
	for _, idx := range i.Indexes {
		indexes = append(indexes, jsonIndex{Name: idx.Name, Columns: idx.Columns})
	}
	sample := i.Sample
	if sample == nil {
		sample = [][]string{}
	}
	report := jsonReport{
		ApplicationID:   i.ApplicationID,
		ApplicationIDOK: i.FormatIDCorrect(),
		DBVersion:       i.UserVersion,
		DBVersionOK:     i.VersionUnderstood(),
		Name:            i.Name,
		Description:     i.Description,
		UUID:            i.UUID.String(),
		Columns:         i.Columns,
		Entries:         i.Entries,
		HasIdealIndex:   i.HasIdealIndex(),
		Indexes:         indexes,
		Sample:          sample,
	}
	out, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return fmt.Errorf("hashdb: failed to encode report: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

// FormatCount renders n with thousands separators, the way entry
// counts appear in reports and progress lines.
func FormatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(s[i])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
