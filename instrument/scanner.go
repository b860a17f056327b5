package instrument

// codeMask marks which bytes of src are executable JavaScript as opposed to
// comment bodies, string and template literal text, or regex literals.
// Template interpolations are code; their ${ and } delimiters are not, so
// brace balancing over masked bytes stays consistent.
func codeMask(src string) []bool {
	mask := make([]bool, len(src))

	// One entry per open template interpolation: the count of unmatched '{'
	// inside it. Closing the last one resumes the template text.
	var interp []int
	inTemplate := false

	lastSig := byte(0)  // last significant code byte
	lastWord := ""      // most recently completed identifier or keyword
	wordBuf := ""
	prevRaw := byte(0) // byte immediately before the current one, for word continuity

	i := 0
	for i < len(src) {
		if inTemplate {
			c := src[i]
			switch {
			case c == '\\' && i+1 < len(src):
				i += 2
			case c == '`':
				inTemplate = false
				i++
			case c == '$' && i+1 < len(src) && src[i+1] == '{':
				interp = append(interp, 0)
				inTemplate = false
				i += 2
			default:
				i++
			}
			continue
		}

		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			prevRaw = ' '

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) {
				if src[i] == '*' && i+1 < len(src) && src[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			prevRaw = ' '

		case c == '\'' || c == '"':
			q := c
			i++
			for i < len(src) {
				if src[i] == '\\' {
					i += 2
					continue
				}
				// An unterminated string ends at the line break so a syntax
				// error in user code cannot swallow the rest of the file.
				if src[i] == q || src[i] == '\n' {
					i++
					break
				}
				i++
			}
			lastSig, lastWord, prevRaw = ')', "", ')'

		case c == '`':
			inTemplate = true
			i++
			lastSig, lastWord, prevRaw = ')', "", ')'

		case c == '/' && regexFollows(lastSig, lastWord):
			i++
			inClass := false
			for i < len(src) {
				if src[i] == '\\' {
					i += 2
					continue
				}
				if src[i] == '[' {
					inClass = true
				} else if src[i] == ']' {
					inClass = false
				} else if src[i] == '/' && !inClass {
					i++
					break
				} else if src[i] == '\n' {
					break
				}
				i++
			}
			for i < len(src) && isWordByte(src[i]) {
				i++
			}
			lastSig, lastWord, prevRaw = ')', "", ')'

		default:
			if c == '}' && len(interp) > 0 && interp[len(interp)-1] == 0 {
				interp = interp[:len(interp)-1]
				inTemplate = true
				i++
				continue
			}
			if len(interp) > 0 {
				if c == '{' {
					interp[len(interp)-1]++
				} else if c == '}' {
					interp[len(interp)-1]--
				}
			}
			mask[i] = true
			if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
				prevRaw = c
			} else {
				if isWordByte(c) {
					if isWordByte(prevRaw) {
						wordBuf += string(c)
					} else {
						wordBuf = string(c)
					}
					lastWord = wordBuf
				}
				lastSig = c
				prevRaw = c
			}
			i++
		}
	}
	return mask
}

// regexFollows decides whether a '/' at the current position starts a regex
// literal rather than a division, from the preceding token. This is the
// usual lexer heuristic; a '/' after ')' or an identifier divides.
func regexFollows(lastSig byte, lastWord string) bool {
	if lastSig == 0 {
		return true
	}
	switch lastSig {
	case '=', '(', '[', '{', '}', ',', ';', ':', '!', '&', '|', '?', '+', '-', '*', '%', '^', '~', '<', '>':
		return true
	}
	if isWordByte(lastSig) {
		switch lastWord {
		case "return", "typeof", "instanceof", "in", "of", "new",
			"delete", "void", "case", "do", "else", "yield", "await", "throw":
			return true
		}
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		c >= 0x80
}
