package matching

import (
    "regexp"
    "strings"
)

// MatchesExclusion reports whether a linking key hits any configured
// exclusion pattern. Patterns containing '*' become full-string regexes with
// '*' substituted by '.*' ("ASS-*" matches "ASS-19" but not "ASSX-19");
// anything else requires exact equality. Other regex metacharacters in a
// pattern are NOT escaped; stored patterns rely on that behavior.
func MatchesExclusion(linkingKey string, exclusions []string) bool {
    for _, pattern := range exclusions {
        if strings.Contains(pattern, "*") {
            re, err := regexp.Compile("^" + strings.ReplaceAll(pattern, "*", ".*") + "$")
            if err != nil { continue }
            if re.MatchString(linkingKey) { return true }
        } else if linkingKey == pattern {
            return true
        }
    }
    return false
}
