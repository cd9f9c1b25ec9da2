package sqldeploy

import "regexp"

var variablePattern = regexp.MustCompile(`\$\((\w+)\)`)

// InsertVariables replaces $(NAME) references in script text with their
// configured values. Replacement is a single pass over the original text,
// so inserted values are never rescanned for further references. Unknown
// references are left in place so the database reports them at execution
// time.
func InsertVariables(sql string, vars map[string]string) string {
	if len(vars) == 0 {
		return sql
	}

	return variablePattern.ReplaceAllStringFunc(sql, func(match string) string {
		value, ok := vars[match[2:len(match)-1]]
		if !ok {
			return match
		}
		return value
	})
}
