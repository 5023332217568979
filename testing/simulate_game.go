package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/engine"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// A scripted bot that plays the shipped world start to finish through
// the public engine API and prints the transcript. Handy for eyeballing
// pacing and notice copy without sitting through a real session.

func main() {
	w, err := world.Load()
	if err != nil {
		log.Fatalf("Failed to load world: %v", err)
	}

	eng := engine.New(w, state.New(w, "simrat"), engine.Options{
		Notifier: engine.NotifierFunc(func(n engine.Notice) {
			fmt.Printf("      [%s] %s\n", n.Kind, n.Text)
		}),
	})
	defer eng.Close()

	fmt.Println("--- Step 1: The Shallows ---")
	look(eng)
	cat(eng, "readme.txt")
	scan(eng)
	runScript(eng, "beacon.lua")

	breach(eng, "anchorage")
	enter(eng, "anchorage")
	talk(eng)

	breach(eng, "echo-relay", "SIGNALFIRE")
	enter(eng, "echo-relay")
	cat(eng, "relay-log.txt")
	cat(eng, "burst.txt")
	pull(eng, "passkey.bin")
	wait(eng)

	fmt.Println("\n--- Step 2: Midnet ---")
	breach(eng, "husk-bbs", eng.ComputeAnswer("DEAD BOARDS REMEMBER"))
	enter(eng, "husk-bbs")
	cat(eng, "board.txt")
	runScript(eng, "hashrat.lua")

	breach(eng, "cipher-vault", "COLDBOOT", eng.ComputeAnswer("COLD PSALM OF THE VAULT"))
	enter(eng, "cipher-vault")
	pull(eng, "lens.dat")
	cat(eng, "psalm.txt")

	breach(eng, "mirror-farm", "HALLOFGLASS")
	enter(eng, "mirror-farm")
	cat(eng, "glasswork.txt")
	pull(eng, "siphon.rig")
	siphon(eng, true)
	time.Sleep(time.Second)
	siphon(eng, false)

	breach(eng, "silent-exchange", eng.ComputeAnswer("EVERY DEBT HAS TEETH"))
	enter(eng, "silent-exchange")
	cat(eng, "ledger.txt")
	pull(eng, "dampener.bin")
	decode(eng, "fragment-beta.sig")

	enter(eng, "husk-bbs")
	decode(eng, "fragment-alpha.sig")

	breach(eng, "static-well", "DROWNEDSIGNAL")
	enter(eng, "static-well")
	cat(eng, "wellsong.txt")

	fmt.Println("\n--- Step 3: The Chant ---")
	reconstruct(eng, "the static is not noise it is the drowned still singing")
	runScript(eng, "rot.lua")
	wait(eng)

	fmt.Println("\n--- Step 4: Deepnet ---")
	breach(eng, "abyss-gate", "UNDERTOW", eng.ComputeAnswer("THE UNDERTOW SINGS BACK"))
	enter(eng, "abyss-gate")
	cat(eng, "hymnal.txt")

	fmt.Println("\n--- Step 5: The Core ---")
	breach(eng, "wyrm-core",
		"LAMPLIGHTER",
		eng.ComputeAnswer("A HEART OF SPUN GLASS"),
		eng.ComputeAnswer("LAST DOOR OUT OF THE DRIFT"))
	enter(eng, "wyrm-core")

	fmt.Println("\n--- Final State ---")
	st := eng.Status()
	fmt.Printf("handle=%s location=%s region=%s step=%s\n", st.Handle, st.Location, st.Region, st.Step)
	fmt.Printf("trace=%d/%d heat=%d trust=%d gc=%d\n", st.Trace, st.TraceMax, st.Heat, st.TrustLevel, st.GC)
	if kind, ok := eng.DominantBehavior(); ok {
		fmt.Printf("profile reads you as: %s\n", kind)
	}
	snap := eng.Snapshot()
	fmt.Printf("discovered=%d unlocked=%d flags=%d inventory=%v\n",
		len(snap.Discovered), len(snap.Unlocked), len(snap.Flags), snap.Inventory)
}

func breach(eng *engine.Engine, id world.LocationID, answers ...string) {
	fmt.Printf("\n  > breach %s\n", id)
	v, err := eng.StartBreach(id)
	if err != nil {
		log.Fatalf("breach %s: %v", id, err)
	}
	if v.Unlocked {
		return
	}
	fmt.Printf("  %s\n", v.Prompt)
	for _, a := range answers {
		fmt.Printf("  > answer %s\n", a)
		res, err := eng.SubmitAnswer(a)
		if err != nil {
			log.Fatalf("answer on %s: %v", id, err)
		}
		switch res.Outcome {
		case engine.SubmitUnlocked:
			return
		case engine.SubmitAdvanced:
			fmt.Printf("  %s\n", res.Prompt)
		default:
			log.Fatalf("lock on %s held: outcome %s", id, res.Outcome)
		}
	}
	log.Fatalf("ran out of answers for %s", id)
}

func enter(eng *engine.Engine, id world.LocationID) {
	fmt.Printf("\n  > enter %s\n", id)
	v, err := eng.Enter(id)
	if err != nil {
		log.Fatalf("enter %s: %v", id, err)
	}
	fmt.Printf("  :: %s\n", v.Title)
	for _, d := range v.Desc {
		fmt.Printf("  %s\n", d)
	}
}

func look(eng *engine.Engine) {
	v := eng.CurrentLocation()
	fmt.Printf("  :: %s  files=%v\n", v.Title, v.Files)
}

func scan(eng *engine.Engine) {
	fmt.Println("  > scan")
	res := eng.Scan()
	fmt.Printf("  revealed=%v pending=%d\n", res.Revealed, res.Pending)
}

func cat(eng *engine.Engine, name string) {
	fmt.Printf("  > cat %s\n", name)
	f, err := eng.ReadFile(name)
	if err != nil {
		log.Fatalf("read %s: %v", name, err)
	}
	fmt.Printf("%s\n", indent(f.Body))
}

func decode(eng *engine.Engine, name string) {
	fmt.Printf("  > decode %s\n", name)
	f, err := eng.DecodeFile(name)
	if err != nil {
		log.Fatalf("decode %s: %v", name, err)
	}
	fmt.Printf("%s\n", indent(f.Body))
}

func pull(eng *engine.Engine, name string) {
	fmt.Printf("  > pull %s\n", name)
	if err := eng.Pull(name); err != nil {
		log.Fatalf("pull %s: %v", name, err)
	}
	// Default transfer time is three seconds; give the timer room.
	time.Sleep(3500 * time.Millisecond)
}

func runScript(eng *engine.Engine, name string) {
	fmt.Printf("  > run %s\n", name)
	res, err := eng.RunScript(name)
	if err != nil {
		log.Fatalf("run %s: %v", name, err)
	}
	for _, line := range res.Output {
		fmt.Printf("  %s\n", line)
	}
}

func reconstruct(eng *engine.Engine, phrase string) {
	fmt.Printf("  > reconstruct %q\n", phrase)
	res, err := eng.Reconstruct(phrase)
	if err != nil {
		log.Fatalf("reconstruct: %v", err)
	}
	if res.Outcome != engine.ChantComplete {
		log.Fatalf("chant came back %s (distance %d)", res.Outcome, res.Distance)
	}
}

func wait(eng *engine.Engine) {
	fmt.Println("  > wait")
	eng.Wait()
}

func talk(eng *engine.Engine) {
	fmt.Println("  > talk")
	if _, err := eng.Talk(); err != nil {
		log.Fatalf("talk: %v", err)
	}
}

func siphon(eng *engine.Engine, on bool) {
	if on {
		fmt.Println("  > siphon on")
		if err := eng.SiphonOn(); err != nil {
			log.Fatalf("siphon on: %v", err)
		}
		return
	}
	fmt.Println("  > siphon off")
	eng.SiphonOff()
}

func indent(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "      " + l
	}
	return strings.Join(lines, "\n")
}
