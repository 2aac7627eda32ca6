// Copyright 2017 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package progress implements the swupd.ProgressReporter collaborator as
// an interactive terminal bar, falling back to quiet no-op behavior when
// stdout isn't a terminal (piped output, CI logs).
package progress

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// Reporter drives a bubbletea program rendering a single progress bar for
// the lifetime of one Begin/Step*/End cycle. It satisfies
// swupd.ProgressReporter.
type Reporter struct {
	interactive bool
	program     *tea.Program
	model       *model
}

// New builds a Reporter. When stdout is not a terminal, every method is a
// no-op rather than emitting bar escape codes into a log file.
func New() *Reporter {
	return &Reporter{interactive: isatty.IsTerminal(os.Stdout.Fd())}
}

type model struct {
	bar       progress.Model
	operation string
	done      int
	total     int
	path      string
}

type stepMsg struct {
	path       string
	done, total int
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.done, m.total, m.path = msg.done, msg.total, msg.path
		if m.total == 0 {
			return m, nil
		}
		return m, m.bar.SetPercent(float64(m.done) / float64(m.total))
	case progress.FrameMsg:
		newModel, cmd := m.bar.Update(msg)
		m.bar = newModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *model) View() string {
	return fmt.Sprintf("%s: %s\n%s\n", m.operation, m.path, m.bar.View())
}

// Begin starts rendering a bar for operation with total steps expected.
func (r *Reporter) Begin(operation string, total int) {
	if !r.interactive {
		return
	}
	r.model = &model{bar: progress.New(progress.WithDefaultGradient()), operation: operation, total: total}
	r.program = tea.NewProgram(r.model, tea.WithoutSignalHandler())
	go func() { _, _ = r.program.Run() }()
}

// Step reports that path was just processed, done of total complete.
func (r *Reporter) Step(path string, done, total int) {
	if !r.interactive || r.program == nil {
		return
	}
	r.program.Send(stepMsg{path: path, done: done, total: total})
}

// End finishes the bar.
func (r *Reporter) End() {
	if !r.interactive || r.program == nil {
		return
	}
	r.program.Quit()
	r.program = nil
}
