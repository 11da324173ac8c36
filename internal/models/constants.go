package models

const ContextSeparator = "\n---\n"

var AnswerPromptTemplate = `Here are travel advisory excerpts retrieved for the question:
<advisories>
%s
</advisories>
Question:
<question>
%s
</question>
Answer using only the advisories above. Name the countries you draw on. If the advisories do not cover the question, say so instead of guessing.
`
