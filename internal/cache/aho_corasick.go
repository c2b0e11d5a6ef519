// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package cache holds in-process lookup structures used on the hot path of
// the reactive layer.
package cache

import "strings"

// AhoCorasick is an immutable multi-pattern matcher. It finds every keyword
// occurrence in a text in O(n + m + z) (text length, total pattern length,
// match count), so adding keywords does not slow down the per-event check.
//
// Matching is case-insensitive: patterns and text are lower-cased.
//
//	ac := NewAhoCorasick([]string{"PIN", "OTP", "CVV"})
//	m, ok := ac.SearchFirst("please send your otp")
//	// m.Pattern == "OTP"
type AhoCorasick struct {
	root     *acNode
	patterns []string
}

type acNode struct {
	children map[rune]*acNode
	failure  *acNode
	output   []int // indices into patterns ending at this node
}

// Match is a pattern occurrence in a text.
type Match struct {
	// Pattern is the keyword as it was registered (original casing).
	Pattern string
	// Position is the byte offset of the match in the text.
	Position int
}

// NewAhoCorasick builds the automaton for the given patterns. Empty patterns
// are ignored.
func NewAhoCorasick(patterns []string) *AhoCorasick {
	ac := &AhoCorasick{root: newACNode()}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		ac.insert(len(ac.patterns), strings.ToLower(p))
		ac.patterns = append(ac.patterns, p)
	}
	ac.buildFailureLinks()
	return ac
}

func newACNode() *acNode {
	return &acNode{children: make(map[rune]*acNode)}
}

func (ac *AhoCorasick) insert(index int, pattern string) {
	node := ac.root
	for _, ch := range pattern {
		next, ok := node.children[ch]
		if !ok {
			next = newACNode()
			node.children[ch] = next
		}
		node = next
	}
	node.output = append(node.output, index)
}

// buildFailureLinks wires failure transitions breadth-first.
func (ac *AhoCorasick) buildFailureLinks() {
	queue := make([]*acNode, 0, len(ac.root.children))
	for _, child := range ac.root.children {
		child.failure = ac.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = ac.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// step advances the automaton by one rune.
func (ac *AhoCorasick) step(node *acNode, ch rune) *acNode {
	for node != nil && node.children[ch] == nil {
		node = node.failure
	}
	if node == nil {
		return ac.root
	}
	return node.children[ch]
}

// Search returns every match in text, in order of match end position.
func (ac *AhoCorasick) Search(text string) []Match {
	if len(ac.patterns) == 0 {
		return nil
	}

	var matches []Match
	node := ac.root
	for i, ch := range strings.ToLower(text) {
		node = ac.step(node, ch)
		for _, idx := range node.output {
			matches = append(matches, ac.match(idx, i, ch))
		}
	}
	return matches
}

// SearchFirst returns the match that completes earliest in text.
func (ac *AhoCorasick) SearchFirst(text string) (Match, bool) {
	if len(ac.patterns) == 0 {
		return Match{}, false
	}

	node := ac.root
	for i, ch := range strings.ToLower(text) {
		node = ac.step(node, ch)
		if len(node.output) > 0 {
			return ac.match(node.output[0], i, ch), true
		}
	}
	return Match{}, false
}

// Contains reports whether any pattern occurs in text.
func (ac *AhoCorasick) Contains(text string) bool {
	_, ok := ac.SearchFirst(text)
	return ok
}

// PatternCount returns the number of registered patterns.
func (ac *AhoCorasick) PatternCount() int {
	return len(ac.patterns)
}

func (ac *AhoCorasick) match(idx, end int, last rune) Match {
	p := ac.patterns[idx]
	endByte := end + len(string(last))
	return Match{Pattern: p, Position: endByte - len(strings.ToLower(p))}
}
