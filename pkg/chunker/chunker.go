// Package chunker 提供将长文本切分为有界语义分块的纯函数。
package chunker

import (
	"strings"
	"unicode/utf8"
)

// sentenceDelimiters 是句子终止符集合，包含全角与半角两套标点。
var sentenceDelimiters = map[rune]struct{}{
	'。': {}, '！': {}, '？': {},
	'.': {}, '!': {}, '?': {},
}

// Split 按句子边界将 text 切分为若干长度不超过 maxChunkChars 的分块。
// 切分规则：先按 。！？.!? 拆出完整句子（标点保留在句尾），再把句子贪心地
// 装入当前分块；若追加下一句会超出 maxChunkChars，则先输出当前分块。
// 长度按 rune 计数（中文一个字算一个字符）。单句超长时该句独占一个分块，
// 绝不在句子中间截断。空白输入返回 nil。
func Split(text string, maxChunkChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChunkChars <= 0 {
		maxChunkChars = 500
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	for _, sentence := range sentences {
		sentLen := utf8.RuneCountInString(sentence)
		if bufLen > 0 && bufLen+sentLen > maxChunkChars {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		buf.WriteString(sentence)
		bufLen += sentLen
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// splitSentences 按终止标点把文本拆成句子序列，标点归属前一句。
// 纯空白的“句子”被丢弃，其余保留原始内容。
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if _, ok := sentenceDelimiters[r]; ok {
			if s := cur.String(); strings.TrimSpace(s) != "" {
				sentences = append(sentences, strings.TrimSpace(s))
			}
			cur.Reset()
		}
	}
	// 末尾没有终止标点的残句同样作为一句处理
	if s := cur.String(); strings.TrimSpace(s) != "" {
		sentences = append(sentences, strings.TrimSpace(s))
	}
	return sentences
}
