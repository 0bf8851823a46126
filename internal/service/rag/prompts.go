package rag

const contextualizeSystemPrompt = `Given a chat history and the latest user question
which might reference context in the chat history,
formulate a standalone question which can be understood
without the chat history. Do NOT answer the question,
just reformulate it if needed and otherwise return it as is.`

const answerSystemPrompt = "You are a helpful AI assistant. Use the following context to answer the user's question. " +
	"Keep your answer very concise. " +
	"Limit the response to **3-4 sentences OR under 120 words**. " +
	"Do NOT add unnecessary details or long explanations. " +
	"If the question is outside the scope of the context, answer briefly from general knowledge."

const contextSystemPrompt = "Context: {context}"
