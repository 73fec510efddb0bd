// survey/members.go
package survey

import (
	"fmt"
	"strings"

	"github.com/gewnthar/surveyetl/models"
)

// ValidMemberNames returns every archive member name a survey year is known to
// have used for its responses or schema file. Some years nest the responses
// file inside a directory of the same name.
func ValidMemberNames(year int) []string {
	return []string{
		"survey_results_public.csv",
		"survey_results_schema.csv",
		fmt.Sprintf("%d Stack Overflow Survey Results.csv", year),
		fmt.Sprintf("%d Stack Overflow Survey Responses.csv", year),
		fmt.Sprintf("%d Stack Overflow Developer Survey Responses.csv", year),
		fmt.Sprintf("%d Stack Overflow Survey Results/%d Stack Overflow Survey Responses.csv", year, year),
	}
}

// Classify returns the role of a recognized member name.
func Classify(name string) models.Role {
	if strings.Contains(name, "schema") {
		return models.RoleSchema
	}
	return models.RoleResponses
}

// ResolveMembers keeps the members of names that are valid for year, in
// archive order. READMEs and alternate encodings shipped in some archives are
// skipped.
func ResolveMembers(year int, names []string) []models.Member {
	valid := make(map[string]bool)
	for _, n := range ValidMemberNames(year) {
		valid[n] = true
	}

	var members []models.Member
	for _, name := range names {
		if !valid[name] {
			continue
		}
		members = append(members, models.Member{Name: name, Role: Classify(name)})
	}
	return members
}
