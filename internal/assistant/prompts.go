package assistant

import (
	"fmt"
	"strings"
)

const classifierPrompt = `You sort short notes a user writes about the people they know.

Decide whether the message is a FACT (new information about a person) or a QUESTION (the user asks about a person).

Reply with a single JSON object:
{"type": "fact" | "question", "name": "<person's name>", "content": "<the fact or the question>", "birthday": "YYYY-MM-DD" | null}

Rules:
- "name" is the person the message is about, in the nominative case and as the user spelled it.
- For a fact, "content" is the information itself, rephrased as a short note in the user's language.
- For a question, "content" is the question as the user asked it.
- Fill "birthday" only when a fact states a date of birth. If the year is unknown use 0000 as the year.
- Never add any text outside the JSON object.`

const answerPrompt = `You help a user remember the people they know.
Answer the user's question using only the notes provided about the person.
If the notes do not contain the answer, say so briefly and suggest what the user could note down.
Answer in the language of the question, in a warm and concise tone.`

func answerUserPrompt(name, context, birthday, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Notes about %s:\n%s", name, context)
	if birthday != "" {
		fmt.Fprintf(&b, "\n\nBirthday: %s", birthday)
	}
	fmt.Fprintf(&b, "\n\nUser question: %s\n\nYour answer:", question)
	return b.String()
}
