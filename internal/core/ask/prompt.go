package ask

import (
	"strings"
)

// NoContextMarker はコンテキストが空のときにプロンプトへ埋め込む文字列
const NoContextMarker = "(no context available)"

// OutOfContextPhrase は文脈外の質問に対してモデルへ答えさせる表現
const OutOfContextPhrase = "out of context of the PDF"

// BuildAskPrompt はPDF質問応答用のプロンプトを構築する
func BuildAskPrompt(question string, contextChunks []string) string {
	var sb strings.Builder

	sb.WriteString("Answer the following question using only the data below.\n\n")

	sb.WriteString("Context:\n")
	if len(contextChunks) > 0 {
		for i, chunk := range contextChunks {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(chunk)
		}
	} else {
		sb.WriteString(NoContextMarker)
	}
	sb.WriteString("\n\n")

	sb.WriteString("Question: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\n")

	// 回答のガイドライン
	sb.WriteString("Instructions:\n")
	sb.WriteString("- If the question is not answered by the context, reply that it is " + OutOfContextPhrase + ".\n")
	sb.WriteString("- Make the answer detailed and elaborate.\n")
	sb.WriteString("- On a new line below the answer, state in brackets where in the context it is mentioned, for example (para 5) or (line 6).\n")
	sb.WriteString("- Avoid markdown; answer in plain text.\n\n")

	sb.WriteString("Answer:")

	return sb.String()
}
