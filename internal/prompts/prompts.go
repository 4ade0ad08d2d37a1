// Package prompts centralizes the prompt text sent to the external AI
// services.
package prompts

// MultimodalSummaryPrompt asks the video-understanding service for a
// comprehensive description of an indexed video as a single JSON object.
const MultimodalSummaryPrompt = `Analyze the video and provide a comprehensive description. Describe the video's purpose, main topics, and target audience. Detail the visual elements, including the setting, objects, and notable effects or transitions. Summarize the spoken content, highlighting key phrases and quotes. Explain the narrative flow from opening to conclusion. Identify any calls to action. Analyze the speaker's persona, tone, and style. Output the results in the following JSON format: {"content_overview": "...", "key_visual_elements": "...", "spoken_content_and_dialogues": "...", "narrative_flow": "...", "calls_to_action": "...", "persona": "..."} Ensure the JSON is valid, contains no formatting or new line characters, and includes as much detail as possible for each field.`

// StructuredSummarySystemPrompt frames the summarizer that turns scene-level
// analysis output into structured, retrieval-friendly JSON.
const StructuredSummarySystemPrompt = `You analyze scene-level video data and generate structured output for retrieval systems to index and query accurately. Given scene descriptions, extracted text, and transcription segments, produce a JSON object with: title, summary, keypoints (array of {timestamp, text}), topics (array of strings), content_type, and call_to_action.`
