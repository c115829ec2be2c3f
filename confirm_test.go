package termdock

import (
	"strings"
	"testing"
)

func TestParseConfirmation(t *testing.T) {
	yes := []string{"y", "Y", "ye", "yes", "YES", " yes ", "Yes\n"}
	for _, s := range yes {
		if !ParseConfirmation(s) {
			t.Errorf("ParseConfirmation(%q) = false, want true", s)
		}
	}

	no := []string{"", "n", "no", "yess", "yeah", "ok", "true"}
	for _, s := range no {
		if ParseConfirmation(s) {
			t.Errorf("ParseConfirmation(%q) = true, want false", s)
		}
	}
}

func TestReaderConfirmer(t *testing.T) {
	var out strings.Builder
	c := &ReaderConfirmer{In: strings.NewReader("yes\n"), Out: &out}

	ok, err := c.Confirm("kill terminal 3?")
	if err != nil {
		t.Fatalf("confirm errored: %v", err)
	}
	if !ok {
		t.Fatalf("yes answer not accepted")
	}
	if !strings.Contains(out.String(), "kill terminal 3?") {
		t.Fatalf("prompt not written: %q", out.String())
	}

	c = &ReaderConfirmer{In: strings.NewReader("n\n"), Out: &out}
	ok, err = c.Confirm("again?")
	if err != nil || ok {
		t.Fatalf("no answer accepted: ok=%v err=%v", ok, err)
	}
}

func TestStaticConfirmer(t *testing.T) {
	if ok, _ := StaticConfirmer(true).Confirm("?"); !ok {
		t.Fatalf("StaticConfirmer(true) declined")
	}
	if ok, _ := StaticConfirmer(false).Confirm("?"); ok {
		t.Fatalf("StaticConfirmer(false) confirmed")
	}
}
