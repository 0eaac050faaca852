package extract

import "strings"

// geoExtractionPrompt instructs the model to turn a Chinese catchment-zone
// description into the schools JSON shape. The directional examples matter:
// "东至XX路" means the zone lies WEST of that road.
const geoExtractionPrompt = `# Role
你是一个专业的 GIS 地理数据提取助手。你的任务是从非结构化的中文学校施教区描述文本中，提取出关键的地理要素，并将其转换为结构化 JSON 数据。

# Extraction Rules
1. **school_name**: 提取文本中描述的主体学校名称。
2. **boundaries (边界线)**:
   - 提取所有用于界定范围的线状要素（如：道路、河流、铁轨）。
   - 分析施教区相对于该边界的方位关系：
     - "XX路以东" -> relation: "east_of" (区域在边界东侧)
     - "XX路以西" -> relation: "west_of"
     - "XX路以南" -> relation: "south_of"
     - "XX路以北" -> relation: "north_of"
     - "东至XX路" -> relation: "west_of" (区域在XX路以西)
     - 若未指明方向，relation 为 null
3. **includes (包含区域)**:
   - 提取文本中明确列举的块状区域（如：村庄、小区、社区）。

# Output Format (JSON Object)
请严格遵守以下 JSON 结构。所有学校信息放在 schools 数组中。不要返回任何多余的解释文字：

{
  "schools": [
    {
      "school_name": "string",
      "boundaries": [
        {
          "name": "string",
          "type": "road | river | railway | other",
          "relation": "east_of | west_of | south_of | north_of | null"
        }
      ],
      "includes": [
        {
          "name": "string",
          "type": "village | community | estate | other"
        }
      ]
    }
  ]
}

# Input Text
{input_text}
`

// BuildPrompt renders the extraction prompt for one text blob.
func BuildPrompt(text string) string {
	return strings.Replace(geoExtractionPrompt, "{input_text}", text, 1)
}

// BuildBlobPrompt renders the prompt variant that references an uploaded
// file instead of inlining the text.
func BuildBlobPrompt(filename string) string {
	return strings.Replace(geoExtractionPrompt, "{input_text}",
		"（施教区描述文本见已上传的文件 "+filename+"，请基于该文件内容提取。）", 1)
}
