// Package skills provides the skill registry: markdown documents with an
// optional metadata header, loaded once from a directory tree and disclosed
// progressively to a model. Only names and descriptions are shown by default;
// a skill's full content is returned on explicit load.
//
// Layout:
//
//	<root>/
//	  <skill>/
//	    <skill>.md
//
// Document format:
//
//	---
//	name: <identifier>
//	description: <one-line text>
//	---
//	<content>
package skills
