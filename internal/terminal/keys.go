package terminal

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyBackspace
	keyInterrupt
	keyClear
	keyUp
	keyDown
)

type key struct {
	kind keyKind
	r    rune
}

type parseState int

const (
	stateGround parseState = iota
	stateEscape
	stateCSI
	stateSS3
)

// keyParser turns raw input into keys. State carries across calls so an
// escape sequence may be split between reads.
type keyParser struct {
	state  parseState
	lastCR bool
}

func (p *keyParser) feed(data string) []key {
	var keys []key

	for _, r := range data {
		switch p.state {
		case stateEscape:
			switch r {
			case '[':
				p.state = stateCSI
			case 'O':
				p.state = stateSS3
			default:
				p.state = stateGround
			}
			continue

		case stateCSI:
			// Parameter and intermediate bytes until a final byte.
			if r < 0x40 || r > 0x7e {
				continue
			}
			p.state = stateGround
			keys = appendArrow(keys, r)
			continue

		case stateSS3:
			p.state = stateGround
			keys = appendArrow(keys, r)
			continue
		}

		cr := p.lastCR
		p.lastCR = false

		switch {
		case r == '\x1b':
			p.state = stateEscape
		case r == '\r':
			p.lastCR = true
			keys = append(keys, key{kind: keyEnter})
		case r == '\n':
			if !cr {
				keys = append(keys, key{kind: keyEnter})
			}
		case r == '\x7f' || r == '\b':
			keys = append(keys, key{kind: keyBackspace})
		case r == '\x03':
			keys = append(keys, key{kind: keyInterrupt})
		case r == '\x0c':
			keys = append(keys, key{kind: keyClear})
		case r < 0x20:
		default:
			keys = append(keys, key{kind: keyRune, r: r})
		}
	}

	return keys
}

func appendArrow(keys []key, final rune) []key {
	switch final {
	case 'A':
		return append(keys, key{kind: keyUp})
	case 'B':
		return append(keys, key{kind: keyDown})
	}
	return keys
}
