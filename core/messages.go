package core

import "strings"

// Translator renders a user facing message from a message code and its data.
type Translator interface {
	Translate(code string, data map[string]string) string
}

// Catalog is a Translator backed by a code -> template table. Templates
// reference data with %{key}. Unknown codes render as the code itself.
type Catalog map[string]string

// DefaultCatalog holds the english messages.
var DefaultCatalog = Catalog{
	MessageWaitingResourceLock: "Waiting for locked resource %{name}",
}

// Translate implements Translator.
func (c Catalog) Translate(code string, data map[string]string) string {
	tmpl, ok := c[code]
	if !ok {
		return code
	}

	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "%{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
