package crtcbuild

import (
	"errors"
	"fmt"
	"os"

	"github.com/rivo/tview"
	"golang.org/x/term"
)

// ErrMenuCancelled is returned when the user leaves the menu without building.
var ErrMenuCancelled = errors.New("menu cancelled")

// MenuChoice is what the interactive menu produced.
type MenuChoice struct {
	Request BuildRequest
	// All builds every CPU of Request.TargetOS and packages them together.
	All bool
}

const allCPUsLabel = "all"

// RunMenu shows a form for the build matrix, pre-filled from def. It only
// returns a choice that passes BuildRequest.Validate.
func RunMenu(def BuildRequest) (MenuChoice, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return MenuChoice{}, errors.New("the menu needs an interactive terminal; use 'crtcbuild build' with flags instead")
	}

	projects := make([]string, len(AllProjects))
	for i, p := range AllProjects {
		projects[i] = string(p)
	}
	oses := make([]string, len(AllOSes))
	for i, o := range AllOSes {
		oses[i] = string(o)
	}
	cpus := []string{allCPUsLabel}
	for _, c := range AllCPUs {
		cpus = append(cpus, string(c))
	}

	choice := MenuChoice{Request: def}
	confirmed := false

	app := tview.NewApplication()
	status := tview.NewTextView().SetDynamicColors(true)
	form := tview.NewForm()

	form.AddDropDown("Project", projects, indexOf(projects, string(def.Project)), func(opt string, _ int) {
		choice.Request.Project = Project(opt)
	})
	form.AddDropDown("Target OS", oses, indexOf(oses, string(def.TargetOS)), func(opt string, _ int) {
		choice.Request.TargetOS = TargetOS(opt)
	})
	form.AddDropDown("Target CPU", cpus, indexOf(cpus, string(def.TargetCPU)), func(opt string, _ int) {
		if opt == allCPUsLabel {
			choice.All = true
			return
		}
		choice.All = false
		choice.Request.TargetCPU = TargetCPU(opt)
	})
	form.AddCheckbox("Debug", def.Debug, func(checked bool) { choice.Request.Debug = checked })
	form.AddCheckbox("Examples", def.Examples, func(checked bool) { choice.Request.Examples = checked })

	form.AddButton("Build", func() {
		req := choice.Request
		if choice.All {
			// any valid CPU; the batch replaces it
			req.TargetCPU = AllCPUs[0]
		}
		if err := req.Validate(); err != nil {
			status.SetText(fmt.Sprintf("[red]%v[white]", err))
			return
		}
		if choice.All {
			choice.Request = req
		}
		confirmed = true
		app.Stop()
	})
	form.AddButton("Cancel", func() { app.Stop() })
	form.SetCancelFunc(func() { app.Stop() })
	form.SetBorder(true).SetTitle(" crtcbuild ").SetTitleAlign(tview.AlignLeft)

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(status, 1, 0, false)

	if err := app.SetRoot(layout, true).SetFocus(form).Run(); err != nil {
		return MenuChoice{}, fmt.Errorf("menu failed: %w", err)
	}
	if !confirmed {
		return MenuChoice{}, ErrMenuCancelled
	}
	return choice, nil
}

// indexOf returns the position of s in opts, or 0.
func indexOf(opts []string, s string) int {
	for i, o := range opts {
		if o == s {
			return i
		}
	}
	return 0
}
