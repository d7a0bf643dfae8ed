package api

import (
	"fmt"
	"net/http"
	"sort"
)

// Scenario scripts how the stub answers one job, from submission to
// artifact download.
type Scenario struct {
	Name string

	// SubmitStatus is the status of the run_acedrg reply, 200 when zero.
	SubmitStatus int
	// SubmitBody replaces the generated spawn reply when set.
	SubmitBody string
	// RejectMessage makes the stub answer with a null job_id.
	RejectMessage string
	// QueuePosition makes the stub answer 202 with a queue position.
	QueuePosition *int

	// Messages are pushed over the job channel in order.
	Messages []string
	// Hold keeps the job channel open after the last message.
	Hold bool

	// ArtifactStatus is the status of get_cif, 200 when zero.
	ArtifactStatus int
	Artifact       []byte
}

// DefaultArtifact is the document served by scenarios that finish
var DefaultArtifact = []byte(`data_LIG
#
_chem_comp.id LIG
_chem_comp.name benzene
_chem_comp.type NON-POLYMER
#
loop_
_chem_comp_atom.comp_id
_chem_comp_atom.atom_id
_chem_comp_atom.type_symbol
LIG C1 C
LIG C2 C
LIG C3 C
LIG C4 C
LIG C5 C
LIG C6 C
`)

const (
	msgRunning  = `{"status":"Running"}`
	msgFinished = `{"status":"Finished","job_output":{"stdout":"AceDRG finished normally","stderr":""}}`
	msgFailed   = `{"status":"Failed","job_output":{"stdout":"","stderr":"Segmentation fault"},"error_message":"acedrg exited with a non-zero code","failure_reason":"AcedrgError"}`
)

var queuedMessages = []string{
	`{"status":"Queued","queue_position":2}`,
	`{"status":"Queued","queue_position":1}`,
	msgRunning,
	msgFinished,
}

func intPtr(v int) *int { return &v }

var scenarios = map[string]Scenario{
	"finished": {
		Messages: []string{msgRunning, msgFinished},
		Artifact: DefaultArtifact,
	},
	"queued": {
		QueuePosition: intPtr(2),
		Messages:      queuedMessages,
		Artifact:      DefaultArtifact,
	},
	"malformed": {
		Messages: []string{msgRunning, `{"status": Finish`, msgFinished},
		Artifact: DefaultArtifact,
	},
	"failed": {
		Messages: []string{msgRunning, msgFailed},
	},
	"rejected": {
		RejectMessage: "Job queue is full",
	},
	"server-error": {
		SubmitStatus: http.StatusInternalServerError,
		SubmitBody:   "internal server error",
	},
	"garbled": {
		SubmitBody: "<html>maintenance</html>",
	},
	"not-found": {
		Messages:       []string{msgRunning, msgFinished},
		ArtifactStatus: http.StatusNotFound,
	},
	"dropped": {
		Messages: []string{msgRunning},
	},
	"stalled": {
		Messages: []string{msgRunning},
		Hold:     true,
	},
}

// LookupScenario returns the named built-in scenario
func LookupScenario(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q, known: %v", name, ScenarioNames())
	}
	s.Name = name
	return s, nil
}

// ScenarioNames lists the built-in scenarios
func ScenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Scenario) submitStatus() int {
	if s.QueuePosition != nil && s.SubmitStatus == 0 {
		return http.StatusAccepted
	}
	if s.SubmitStatus == 0 {
		return http.StatusOK
	}
	return s.SubmitStatus
}

func (s Scenario) artifactStatus() int {
	if s.ArtifactStatus == 0 {
		return http.StatusOK
	}
	return s.ArtifactStatus
}
