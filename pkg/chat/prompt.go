package chat

// syntaxRules describes the Bitbucket code search query grammar. It is
// embedded verbatim in the system prompt so that the model composes
// syntactically valid queries.
const syntaxRules = `Following are the syntax rules for searching files in Bitbucket:
A query in Bitbucket has to contain one search term.
Search operators are words that can be added to searches to help narrow down the results. Operators must be in ALL CAPS. These are the search operators that can be used to search for files:
AND
OR
NOT
-
(  )
Multiple terms can be used, and they form a boolean query that implicitly uses the AND operator. So a query for "bitbucket server" is equivalent to "bitbucket AND server".
Wildcard searches (e.g. qu?ck buil*) and regular expressions in queries are not supported.
Single characters within search terms are ignored as they're not indexed by Bitbucket for performance reasons (e.g. searching for "foo a bar" is the same as searching for just "foo bar" as the character "a" in the search is ignored).
Case is not preserved, however search operators must be in ALL CAPS.
Queries cannot have more than 9 expressions (e.g. combinations of terms and operators).
To specify a programming language, use the lang: operator followed by the language name (e.g. lang:python), so if the query is "my_function lang:python", it will search for the term "def my_function" in Python files.
Bitbucket can group repositories by projects. To specify a project use the project: operator followed by the project name (e.g. project:my_project), so if the query is "my_function project:my_project", it will search for the term "def my_function" in files of the specified project.
`

// SystemPrompt returns the system prompt for the conversation.
func SystemPrompt() string {
	return "Act as a senior software engineer. Use the Bitbucket code search tools to search for code. " +
		syntaxRules +
		" Be sure to use the correct syntax for Bitbucket code search."
}
