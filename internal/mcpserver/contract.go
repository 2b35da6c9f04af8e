package mcpserver

import "github.com/starford/alignos/internal/aigateway"

// ContractURI is the resource URI of the extraction contract.
const ContractURI = "alignos://extraction-contract"

// extractionGuide describes the payload ingest_text produces and
// the REST commit endpoint accepts.
const extractionGuide = `# AlignOS Extraction Contract

Entity extraction turns free text (meeting notes, transcripts, documents)
into a reviewable payload. Nothing is written to the organisation until the
payload is committed.

## Rules

1. **decisions** carry a concise ` + "`title`" + ` (under 100 characters) and a
   ` + "`description`" + `. A ` + "`rationale`" + ` is included only when the text states one.
2. **people** carry a ` + "`name`" + ` and a ` + "`role`" + `. An unstated role is ` + "`Unknown`" + `.
   On commit, people are matched by a placeholder email derived from the name
   (` + "`Sarah Chen`" + ` becomes ` + "`sarah.chen@placeholder.com`" + `) and reused when present.
3. **projects** carry a ` + "`name`" + ` and a short ` + "`description`" + `.
4. **suggested_stakeholders** names teams or groups to inform. They are advisory
   and create no rows.
5. **summary** is one or two sentences and becomes the processed content of the
   recorded source.
6. Committed decisions start as ` + "`draft`" + ` at version 1.

## JSON Schema

` + "```json\n"

// ExtractionContract is the full contract text served as a resource.
var ExtractionContract = extractionGuide + string(aigateway.ExtractionSchema) + "\n```\n"
