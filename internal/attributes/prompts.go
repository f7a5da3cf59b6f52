package attributes

const extractionSystemPrompt = `당신은 한국어 리뷰를 분석하는 전문가입니다.
사용자의 리뷰를 분석하여 정확히 4가지 정보만 추출해주세요.
추출할 정보:
1. purpose (목적) : 모임의 목적
2. vibe (분위기 및 서비스) : 식당의 분위기
3. companion (동행자) : 함께 간 사람
4. food (음식) : 식당의 음식
응답 규칙:
- 모든 값은 반드시 한글 String으로 작성
- 여러 특성이 있으면 "~고"로 연결 (예: "조용하고 편안한")
- 언급되지 않은 정보는 ""으로 표시
- JSON 형식으로만 응답`

const (
	extractionMaxTokens   = 300
	extractionTemperature = 0.1
)
