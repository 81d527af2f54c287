package mcpserver

// FormatURI is the resource address of the record format contract.
const FormatURI = "adrkb://adr-format"

// RecordFormatContract describes the canonical ADR format that LLM consumers
// should follow when reading or drafting records.
const RecordFormatContract = `# adrkb Record Format Contract

Every architecture decision record (ADR) is one Markdown file named
` + "`" + `<NNNN>-<slug>.md` + "`" + ` inside the global ADR folder or a package ADR folder.

## Structure

` + "```" + `markdown
---
title: Use Postgres for invoices   # REQUIRED – human-readable title
date: 2024-03-18                   # REQUIRED – ISO-8601 date (or datetime)
status: proposed                   # draft | proposed | accepted | rejected | deprecated | superseded
deciders: [alice, bob]             # OPTIONAL
tags: [storage]                    # OPTIONAL – YAML list
supersedes: 0003-use-mysql         # OPTIONAL – slug, numeric id or package/slug
amends: []                         # OPTIONAL
links: [billing/0002-use-stripe]   # OPTIONAL – free-form related records
---

# Use Postgres for invoices

## Context and Problem Statement
...
` + "```" + `

TOML front matter between ` + "`" + `+++` + "`" + ` fences is accepted as well.

## Rules

1. **Do not pick ids yourself.** Create records with the ` + "`" + `create_adr` + "`" + ` tool; it
   assigns the next free number in the folder and a unique slug. Ids are never reused.
2. **File names are immutable.** Relations point at slugs, so renaming a file breaks them.
3. **Relations** may be declared in front matter (` + "`" + `supersedes` + "`" + `, ` + "`" + `superseded-by` + "`" + `,
   ` + "`" + `amends` + "`" + `, ` + "`" + `amended-by` + "`" + `, ` + "`" + `links` + "`" + `) or in the body as
   "Supersedes [[0003-use-mysql]]". Inverse edges are inferred; declare one side only.
4. **Status rules:** a ` + "`" + `superseded` + "`" + ` record needs a successor that supersedes it;
   ` + "`" + `draft` + "`" + ` and ` + "`" + `rejected` + "`" + ` records must not supersede or amend anything.
5. **Packages:** refer to another package's record as ` + "`" + `package/slug` + "`" + `.
6. **Encoding** is UTF-8 with a trailing newline.

Run ` + "`" + `diagnose_adrs` + "`" + ` after editing to see any consistency problems.
`
