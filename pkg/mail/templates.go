/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/Masterminds/sprig/v3"
)

// EscalationMailParams fills the escalation notification template.
type EscalationMailParams struct {
	EventTitle  string
	EventID     string
	EventType   string
	FacilityID  string
	DueDate     string
	DaysOverdue int
	Level       int
	ChainName   string

	// AssigneeName is the recipient this mail is addressed to.
	AssigneeName string

	// PreviousAssigneeName is set on level increases so the new owner
	// knows who held the escalation before them.
	PreviousAssigneeName string

	URL          string
	BrandingName string
}

// ResolvedMailParams fills the resolution notice template.
type ResolvedMailParams struct {
	EventTitle      string
	EventID         string
	ResolvedBy      string
	ResolutionNotes string
	URL             string
	BrandingName    string
}

var (
	escalationTemplate = template.New("escalation").Funcs(sprig.HtmlFuncMap())
	resolvedTemplate   = template.New("resolved").Funcs(sprig.HtmlFuncMap())

	//go:embed templates/escalation.html
	escalationTemplateRaw string
	//go:embed templates/resolved.html
	resolvedTemplateRaw string
)

func init() {
	if _, err := escalationTemplate.Parse(escalationTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := resolvedTemplate.Parse(resolvedTemplateRaw); err != nil {
		panic(err)
	}
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

func RenderEscalation(p EscalationMailParams) (string, error) {
	return render(escalationTemplate, p)
}

func RenderResolved(p ResolvedMailParams) (string, error) {
	return render(resolvedTemplate, p)
}
