package handlers

const nextRunLayout = "2006-01-02 15:04 MST"

const (
	startMessage = `👋 Hi! I'm Kith, a notebook for the people you know.

Tell me something about someone ("Oleh loves fishing, his birthday is March 15") and I'll remember it.
Ask me later ("What should I give Oleh?") and I'll answer from your notes.
I'll also remind you about upcoming birthdays.

Send /help to see everything I can do.`

	helpMessage = `## How to use Kith

**Save a fact**
- Oleh loves fishing
- Maria's birthday is 15 March

**Ask a question**
- What should I give Oleh for his birthday?
- What do I know about Maria?

**Commands**
- /list shows everyone you told me about
- /stats shows how many contacts you have
- /help shows this message

Voice messages work too.`

	statsMessage       = "📊 Your contacts\n\nTotal: %d\nWith birthdays: %d"
	listHeader         = "📇 Your contacts:\n\n"
	listEmptyMessage   = "📭 You haven't told me about anyone yet. Send me a fact about someone to get started."
	unknownCommand     = "🤔 I don't know that command. Send /help to see what I can do."
	adminUsage         = "Usage: /admin <password> <HH:MM>"
	adminInvalidSecret = "⛔ Invalid password."
	adminSuccess       = "✅ Reminder time changed to %s."
	adminSuccessNext   = "✅ Reminder time changed to %s. Next run: %s."
	adminFailure       = "❌ Could not change the reminder time. Use HH:MM, for example 09:30."
	notUnderstood      = "🤔 Sorry, I couldn't understand that. Tell me a fact about someone or ask a question about them."
	generalFailure     = "❌ Something went wrong while processing your message. Please try again later."
	voiceFailure       = "❌ Could not process the voice message: %s"
	voiceEmpty         = "🤔 I couldn't hear anything in that voice message."
)
