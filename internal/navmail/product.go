package navmail

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

var initialsArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = pinyin.FirstLetter
	return a
}()

// ProductInitials abbreviates a product name to the pinyin initials of its
// first two characters. Non-Han characters are kept as they are.
func ProductInitials(name string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(name) {
		if n == 2 {
			break
		}
		if unicode.Is(unicode.Han, r) {
			if py := pinyin.LazyPinyin(string(r), initialsArgs); len(py) > 0 && py[0] != "" {
				b.WriteString(py[0])
			} else {
				b.WriteRune(r)
			}
		} else {
			b.WriteRune(r)
		}
		n++
	}
	return strings.ToUpper(b.String())
}
