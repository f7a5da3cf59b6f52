package summarize

// Korean instructions. Both require coverage of the gathering's purpose, the
// restaurant's atmosphere and service, the companions, and the food.
const (
	chunkSystemPrompt = "당신은 한국어 리뷰를 요약하는 전문가입니다. 주어진 리뷰들을 간결하고 명확하게 요약해주세요. 단, 모임의 목적, 식당의 분위기 및 서비스, 동행한 사람, 식당의 음식 정보를 포함해야 합니다."
	chunkUserPrefix   = "다음 리뷰들을 요약해주세요:\n\n"

	finalSystemPrompt = "당신은 여러 요약을 종합하여 하나의 완전한 요약을 만드는 전문가입니다. 단, 모임의 목적, 식당의 분위기 및 서비스, 동행한 사람, 식당의 음식 정보를 포함해야 합니다."
	finalUserPrefix   = "다음 요약들을 종합하여 하나의 완전한 요약을 만들어주세요:\n\n"
)

const (
	chunkMaxTokens     = 500
	finalMaxTokens     = 800
	summaryTemperature = 0.3
)
