package llm

const systemPrompt = "You are a precise knowledge extraction engine. Output strict JSON."

const extractPrompt = `You are a Cognitive Memory Condenser.
Your job is to read a raw episodic memory item and extract structured knowledge from it.
Output MUST be a valid JSON object with the keys "entities", "assertions" and "policies".

Schema:
- entities: canonical entities mentioned (people, organizations, systems, concepts).
  Each is {"name": string, "type": string, "aliases": [string], "confidence": 0.0-1.0}.
- assertions: factual claims. Each is {"subject": ref, "predicate": string, "object": ref,
  "polarity": 1 or -1, "confidence": 0.0-1.0, "evidence": [{"episodic_id": string, "quote": string}]}.
  A ref is {"type": "entity", "name": string} or {"type": "literal", "value": string}.
- policies: operational rules or constraints to remember (e.g. "Do not use library X").
  Each is {"trigger": string, "rule": string, "priority": 0.0-1.0,
  "scope": "global" | "project" | "task", "confidence": 0.0-1.0}.

Rules:
1. Be conservative. Only extract what is explicitly stated or strongly implied.
2. Canonicalize names where possible (e.g. "Bob" -> "Bob Smith", "the db" -> "Primary Database").
3. Polarity: 1 for affirmative ("is"), -1 for negative ("is not").
4. Confidence: 0.0 to 1.0 based on how clear the text is.

Item id: %s
Source: %s

Input text:
%s

Respond ONLY with the JSON.`
