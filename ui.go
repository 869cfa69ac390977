package main

import (
	"fmt"
	"log"
	"time"

	component "github.com/j-04/gocui-component"
	"github.com/jroimartin/gocui"
)

// App wraps the pipeline in a gocui terminal UI: an info bar, the decoded
// text view and a command help view. It doubles as the pipeline's message
// sink, appending decoded text to the main view.
type App struct {
	*Pipeline

	gui   *gocui.Gui
	vinfo *gocui.View
	vmain *gocui.View
	vcmd  *gocui.View

	echoed    string
	startTime time.Time
}

func (app *App) Layout(g *gocui.Gui) (err error) {
	maxX, maxY := g.Size()

	app.vinfo, err = g.SetView("info", 0, 0, maxX-1, 2)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vinfo.Title = "morse-quest"
	}

	app.vmain, err = g.SetView("main", 0, 3, maxX-1, maxY-4)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vmain.Title = "Decoded"
		app.vmain.Wrap = true
		app.vmain.Autoscroll = true
	}

	app.vcmd, err = g.SetView("cmdline", 0, maxY-3, maxX-1, maxY-1)
	if err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}

		app.vcmd.Title = "Available commands"
		fmt.Fprintf(app.vcmd, "^C/^Q: quit  c: clear  t/T: -/+threshold  d/D: -/+dot")

		if app.Player != nil {
			fmt.Fprintf(app.vcmd, "  v/V: -/+volume  m: toggle mute")
		}
	}

	d := time.Since(app.startTime)
	app.vinfo.Clear()
	app.vinfo.SetOrigin(0, 0)

	fmt.Fprintf(app.vinfo,
		"Tone: %4.0fhz  Bw: %3.0fhz  Thr: %2d  dot: %3dms  Level: %2d   %8v",
		app.Freq,
		app.Bandwidth,
		app.Detector.Threshold,
		app.Detector.DotMs,
		app.Detector.Level,
		d.Truncate(time.Second).String(),
	)

	if app.Player != nil {
		fmt.Fprintf(app.vinfo, "  vol: %d", int(app.Player.Volume*10))
	}

	return nil
}

func (app *App) SetKeyBinding() error {

	//
	// quit application: CtrlC / CtrlQ
	//

	quit := func(g *gocui.Gui, v *gocui.View) error {
		return gocui.ErrQuit
	}

	if err := app.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := app.gui.SetKeybinding("", gocui.KeyCtrlQ, gocui.ModNone, quit); err != nil {
		return err
	}

	//
	// clear screen: c
	//

	clearscreen := func(g *gocui.Gui, v *gocui.View) error {
		app.vmain.Clear()
		app.echoed = ""
		return nil
	}

	if err := app.gui.SetKeybinding("", 'c', gocui.ModNone, clearscreen); err != nil {
		return err
	}

	//
	// threshold up/down: T / t
	//

	thresholdUp := func(g *gocui.Gui, v *gocui.View) error {
		if app.Detector.Threshold < maxLevel {
			app.Detector.Threshold += 5
		}
		if app.Detector.Threshold > maxLevel {
			app.Detector.Threshold = maxLevel
		}

		return nil
	}

	thresholdDown := func(g *gocui.Gui, v *gocui.View) error {
		if app.Detector.Threshold > 0 {
			app.Detector.Threshold -= 5
		}
		if app.Detector.Threshold < 0 {
			app.Detector.Threshold = 0
		}

		return nil
	}

	if err := app.gui.SetKeybinding("", 'T', gocui.ModNone, thresholdUp); err != nil {
		return err
	}

	if err := app.gui.SetKeybinding("", 't', gocui.ModNone, thresholdDown); err != nil {
		return err
	}

	//
	// dot duration up/down: D / d
	//

	dotUp := func(g *gocui.Gui, v *gocui.View) error {
		if app.Detector.DotMs < 500 {
			app.Detector.DotMs += 10
			app.Decoder.DotMs = app.Detector.DotMs
		}

		return nil
	}

	dotDown := func(g *gocui.Gui, v *gocui.View) error {
		if app.Detector.DotMs > 10 {
			app.Detector.DotMs -= 10
			app.Decoder.DotMs = app.Detector.DotMs
		}

		return nil
	}

	if err := app.gui.SetKeybinding("", 'D', gocui.ModNone, dotUp); err != nil {
		return err
	}

	if err := app.gui.SetKeybinding("", 'd', gocui.ModNone, dotDown); err != nil {
		return err
	}

	if app.Player != nil {

		//
		// toggle mute: m
		//

		toggleMute := func(g *gocui.Gui, v *gocui.View) error {
			app.Player.Mute(!app.Player.mute)
			return nil
		}

		if err := app.gui.SetKeybinding("", 'm', gocui.ModNone, toggleMute); err != nil {
			return err
		}

		//
		// volume up/down: V / v
		//

		volumeUp := func(g *gocui.Gui, v *gocui.View) error {
			if app.Player.Volume < 2.0 {
				app.Player.Volume += 0.1
			}

			return nil
		}

		volumeDown := func(g *gocui.Gui, v *gocui.View) error {
			if app.Player.Volume > 0.0 {
				app.Player.Volume -= 0.1
			}

			return nil
		}

		if err := app.gui.SetKeybinding("", 'V', gocui.ModNone, volumeUp); err != nil {
			return err
		}

		if err := app.gui.SetKeybinding("", 'v', gocui.ModNone, volumeDown); err != nil {
			return err
		}

	}

	return nil
}

func (app *App) addText(s string) {
	if app.gui == nil {
		fmt.Print(s)
		return
	}

	app.gui.Update(func(g *gocui.Gui) error {
		fmt.Fprint(app.vmain, s)
		return nil
	})
}

// Echo appends only the characters added since the last call.
func (app *App) Echo(msg string) error {
	if len(msg) > len(app.echoed) {
		app.addText(msg[len(app.echoed):])
		app.echoed = msg
	}
	return nil
}

// Finalize ends the current line; when the finalized text differs from what
// was echoed, the corrected message is written on its own line.
func (app *App) Finalize(msg string) error {
	if msg != app.echoed && msg != "" {
		app.addText("\n" + msg)
	}
	app.addText("\n")
	app.echoed = ""
	return nil
}

var (
	FormSelect = fmt.Errorf("form-selected")
	FormCancel = fmt.Errorf("form-cancel")
)

func guiSelectAudio(ssize int) (reader *AudioReader) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	list, err := ListAudioDevices(AudioIn)
	if err != nil {
		log.Fatal(err)
	}

	form := component.NewForm(g, "Select input device", 8, len(list), 0, 0)
	sel := form.AddSelect("Device:", 8, 40).AddOptions(list...)

	form.AddButton("Select", func(g *gocui.Gui, v *gocui.View) error {
		reader, err = FromAudioStream(sel.GetSelected(), ssize)
		if err != nil {
			log.Fatal(err)
		}

		form.Close(g, v)
		return FormSelect
	})

	form.AddButton("Cancel", func(g *gocui.Gui, v *gocui.View) error {
		form.Close(g, v)
		return FormCancel
	})

	form.Draw()

	if err := g.MainLoop(); err != FormSelect && err != FormCancel {
		log.Panicln(err)
	}

	return
}
