package collection

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/template"
)

// Synthesizer produces the virtual accessor module of one collection.
type Synthesizer struct {
	cfg    Config
	store  Lister
	prefix string
	ext    string
}

// NewSynthesizer returns a Synthesizer importing record files from
// "/<base>/<id><ext>" with the first configured extension.
func NewSynthesizer(cfg Config, store Lister) *Synthesizer {
	return &Synthesizer{
		cfg:    cfg,
		store:  store,
		prefix: "/" + cfg.Base + "/",
		ext:    cfg.Extensions[0],
	}
}

// WithImportPath returns a copy importing record modules from prefix+id+ext,
// e.g. "./posts/" and ".js" for built output.
func (s *Synthesizer) WithImportPath(prefix, ext string) *Synthesizer {
	c := *s
	c.prefix = prefix
	c.ext = ext
	return &c
}

// ModuleID is the canonical id Resolve returns.
func (s *Synthesizer) ModuleID() string {
	return s.cfg.Module()
}

// Resolve claims "#<name>", the base directory itself and any request ending
// in "/<base>". Everything else is declined.
func (s *Synthesizer) Resolve(request string) (string, bool) {
	request = strings.ReplaceAll(request, "\\", "/")
	switch {
	case request == s.cfg.Module(),
		request == s.cfg.Base,
		strings.HasSuffix(request, "/"+s.cfg.Base):
		return s.ModuleID(), true
	}
	return "", false
}

// Load emits the module source for moduleID: a get export importing a single
// record by id and a list export importing every record and sorting them.
func (s *Synthesizer) Load(moduleID string) (string, error) {
	if moduleID != s.ModuleID() {
		return "", fmt.Errorf("collection %q: unknown module %q", s.cfg.Name, moduleID)
	}
	entries, err := Scan(s.store, s.cfg)
	if err != nil {
		return "", err
	}

	data := moduleData{
		Name:   s.cfg.Name,
		Prefix: templateEscaper.Replace(s.prefix),
		Ext:    templateEscaper.Replace(s.ext),
	}
	for _, e := range entries {
		spec, err := json.Marshal(s.prefix + e.ID + s.ext)
		if err != nil {
			return "", err
		}
		data.Imports = append(data.Imports, string(spec))
	}
	if srt := s.cfg.Sort; srt != nil {
		field, err := json.Marshal(srt.Field)
		if err != nil {
			return "", err
		}
		data.Sort = &sortData{Field: string(field), Descending: srt.Order == Descending}
	}

	var b strings.Builder
	if err := moduleTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("collection %q: render module: %w", s.cfg.Name, err)
	}
	return b.String(), nil
}

// OutputPath is the module file relative to the output root: "<base>.js",
// next to the "<base>/" directory holding the record modules.
func (s *Synthesizer) OutputPath() string {
	return path.Clean(s.cfg.Base) + ".js"
}

var templateEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

type sortData struct {
	Field      string // JSON encoded
	Descending bool
}

type moduleData struct {
	Name    string
	Prefix  string
	Ext     string
	Imports []string // JSON encoded specifiers
	Sort    *sortData
}

var moduleTemplate = template.Must(template.New("module").Parse(`// Generated by codex for collection {{printf "%q" .Name}}. Do not edit.
const records = [
{{- range .Imports}}
  () => import({{.}}),
{{- end}}
]

export function get(id) {
  return import(` + "`{{.Prefix}}${id}{{.Ext}}`" + `)
}

export async function list() {
  const all = await Promise.all(records.map((load) => load()))
{{- if .Sort}}
  return all.sort(compare)
{{- else}}
  return all
{{- end}}
}
{{- with .Sort}}

function compare(a, b) {
  const field = {{.Field}}
  const x = a[field]
  const y = b[field]
  if (x === undefined || x === null || y === undefined || y === null) {
    throw new Error(` + "`codex: record ${x == null ? a.id : b.id} has no value for sort field ${field}`" + `)
  }
  if (typeof x !== typeof y || (typeof x !== "string" && typeof x !== "number")) {
    throw new Error(` + "`codex: cannot compare ${field} of ${a.id} and ${b.id}`" + `)
  }
{{- if .Descending}}
  return x < y ? 1 : x > y ? -1 : 0
{{- else}}
  return x < y ? -1 : x > y ? 1 : 0
{{- end}}
}
{{- end}}
`))
