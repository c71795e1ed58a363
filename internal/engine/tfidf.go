package engine

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// tfidfStopwords are excluded from text similarity so that filler words do
// not dominate short bios.
var tfidfStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "i": true, "in": true,
	"is": true, "it": true, "my": true, "of": true, "on": true, "or": true,
	"the": true, "to": true, "with": true, "you": true, "am": true, "im": true,
}

// tokenize lowercases, strips punctuation, and drops stopwords and
// single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || tfidfStopwords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tfidfSimilarity computes the cosine similarity of two documents under
// smoothed TF-IDF weighting (idf = ln((N+1)/(df+1)) + 1, so terms shared by
// both documents still contribute). Returns a value in [0.0, 1.0]; two empty
// documents score neutral 0.5, one empty document scores 0.
func tfidfSimilarity(docA, docB string) float64 {
	tokensA := tokenize(docA)
	tokensB := tokenize(docB)

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 0.5
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	tfA := termFrequencies(tokensA)
	tfB := termFrequencies(tokensB)

	// Vocabulary over both documents, with document frequencies.
	vocab := make(map[string]int)
	for term := range tfA {
		vocab[term]++
	}
	for term := range tfB {
		vocab[term]++
	}

	const nDocs = 2.0
	vecA := make([]float64, 0, len(vocab))
	vecB := make([]float64, 0, len(vocab))
	for term, df := range vocab {
		idf := math.Log((nDocs+1)/(float64(df)+1)) + 1
		vecA = append(vecA, tfA[term]*idf)
		vecB = append(vecB, tfB[term]*idf)
	}

	return cosineSimilarity(vecA, vecB)
}

// termFrequencies returns normalized term frequencies for a token list.
func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	n := float64(len(tokens))
	for t := range tf {
		tf[t] /= n
	}
	return tf
}

// cosineSimilarity returns the normalized dot product of two equal-length
// vectors, clamped to [0.0, 1.0]. Zero vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(floats.Dot(a, b) / (normA * normB))
}
