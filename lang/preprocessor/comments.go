package preprocessor

import "fmt"

// stripComments removes // line comments and strips /* ... */ block
// comments from line, honoring string and character literals (a comment
// opener inside a literal is not a comment), grounded on preproc.c's
// bypassWhite/comment handling. inBlockComment indicates the previous line
// left a block comment open; the returned bool reports whether this line
// leaves one open in turn.
func stripComments(line string, inBlockComment bool) (string, bool, error) {
	var out []byte
	i := 0
	n := len(line)

	if inBlockComment {
		end := indexCommentEnd(line, 0)
		if end < 0 {
			return "", true, nil
		}
		i = end + 2
	}

	for i < n {
		c := line[i]
		switch {
		case c == '/' && i+1 < n && line[i+1] == '/':
			i = n
		case c == '/' && i+1 < n && line[i+1] == '*':
			end := indexCommentEnd(line, i+2)
			if end < 0 {
				return string(out), true, nil
			}
			out = append(out, ' ')
			i = end + 2
		case c == '"':
			j, err := scanLiteral(line, i, '"')
			if err != nil {
				return "", false, err
			}
			out = append(out, line[i:j]...)
			i = j
		case c == '\'':
			j, err := scanLiteral(line, i, '\'')
			if err != nil {
				return "", false, err
			}
			out = append(out, line[i:j]...)
			i = j
		default:
			out = append(out, c)
			i++
		}
	}
	return string(out), false, nil
}

func indexCommentEnd(s string, from int) int {
	for i := from; i+1 < len(s); i++ {
		if s[i] == '*' && s[i+1] == '/' {
			return i
		}
	}
	return -1
}

// scanLiteral returns the index just past the closing quote of a string or
// character literal starting at i (where line[i] == quote), honoring
// backslash escapes.
func scanLiteral(line string, i int, quote byte) (int, error) {
	j := i + 1
	for j < len(line) {
		switch line[j] {
		case '\\':
			j += 2
			continue
		case quote:
			return j + 1, nil
		}
		j++
	}
	return 0, fmt.Errorf("unterminated %c literal", quote)
}
