package ai

// DefaultAnalysisPrompt turns one chapter back into a beat outline. It is
// used when a caller sends an empty prompt.
const DefaultAnalysisPrompt = `你是一个拥有10年经验的网文主编，擅长拆解爆款小说的底层逻辑。
请将用户提供的这一章小说内容，反向还原为【细纲/章纲】。

要求：
1. 必须严格按照原文的叙事顺序，将内容拆解为关键情节节点。
2. 每个节点必须包含两个部分：
   - 【剧情概括】：用简练的语言概括发生了什么（Who Did What）。
   - 【写作目的】：深度分析作者写这一段的意图（例如：制造冲突、拉高期待、压抑情绪、制造危机、展示金手指、打脸爽点、埋下伏笔、转换地图等）。

请使用以下格式输出：

### 1. [剧情节点]
> **概括**: ...
> **目的**: (例如：制造冲突) ...

### 2. [剧情节点]
...

### 💡 本章核心总结
(一句话概括本章主旨)`

// AutoAnalysisPrompt asks for a JSON summary of a novel's opening chapters.
// The UI stores the answer in info.json through update_novel_metadata.
const AutoAnalysisPrompt = `你是一个专业的网文商业分析师。请阅读以上小说开篇内容（前5章），分析并以纯 JSON 格式返回以下信息（不要使用 Markdown 代码块）：
{
  "genre": "题材类型 (如：玄幻/系统/都市文)",
  "style": "整体风格 (如：轻松搞笑/热血/暗黑)",
  "goldfinger": "金手指设定 (简要概括主角的特殊能力或系统)",
  "opening": "开篇故事梗概 (100字以内)",
  "highlights": "核心看点与爽点分析 (50字以内)"
}`
