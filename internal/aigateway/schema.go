package aigateway

import json "github.com/goccy/go-json"

// ExtractToolName is the function the model is forced to call during extraction.
const ExtractToolName = "extract_entities"

// ExtractionSchema is the JSON Schema of the extract_entities arguments.
// It doubles as the published extraction contract.
var ExtractionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "decisions": {
      "type": "array",
      "description": "Key decisions or agreements found in the text",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string", "description": "A concise title for the decision (under 100 chars)"},
          "description": {"type": "string", "description": "A detailed description of the decision"},
          "rationale": {"type": "string", "description": "Why this decision was made, if mentioned"}
        },
        "required": ["title", "description"]
      }
    },
    "people": {
      "type": "array",
      "description": "People mentioned in the text",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Person's full name"},
          "role": {"type": "string", "description": "Their role or title if mentioned, or 'Unknown' if not specified"}
        },
        "required": ["name", "role"]
      }
    },
    "projects": {
      "type": "array",
      "description": "Projects or initiatives mentioned",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string", "description": "Project name"},
          "description": {"type": "string", "description": "Brief description of the project"}
        },
        "required": ["name", "description"]
      }
    },
    "suggested_stakeholders": {
      "type": "array",
      "description": "Teams or groups that should be informed about these decisions",
      "items": {"type": "string"}
    },
    "summary": {
      "type": "string",
      "description": "A 1-2 sentence summary of the main topics covered in the text"
    }
  },
  "required": ["decisions", "people", "projects", "suggested_stakeholders", "summary"]
}`)

const extractionPrompt = `You are an expert at analyzing organizational documents, meeting notes, and transcripts.
Your job is to extract structured information about decisions, people, projects, and stakeholders.
Be thorough but only extract information that is explicitly stated or strongly implied in the text.
If you cannot find certain types of information, return empty arrays for those fields.`

const ocrPrompt = `Extract ALL text content from this PDF document.

Instructions:
- Return only the extracted text, preserving paragraph structure
- Include all headings, bullet points, and numbered lists
- If there are tables, format them as readable text
- Do not add any commentary or explanation
- If the document is a scanned image, use OCR to extract the text
- If you cannot read the content, say "Unable to extract text from this document"`
