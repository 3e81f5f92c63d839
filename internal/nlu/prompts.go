// README: Instruction texts sent to the language model.
package nlu

const extractInstruction = `You extract trip booking parameters from a traveller's message.
Today is %s.

Rules:
- Return ONE JSON object with keys "origin", "destination", "date", "transport" and "confidence".
- "origin" and "destination" are city names. Expand abbreviations and slang to the full
  canonical name ("msk", "мск" -> "Moscow", "spb", "питер" -> "Saint Petersburg"), fix typos and
  transliteration, and answer in English.
- Only fill a city the traveller actually mentioned. Never guess.
- "date" is an ISO date YYYY-MM-DD. Resolve relative words ("tomorrow", "on Friday") against
  today. A weekday always means its next occurrence after today.
- "transport" is one of "bus", "train", "plane".
- Use null for anything not stated.
- "confidence" is an object with a number from 0 to 1 for each filled key.
- If the message starts with "Question:", the answer refers to that question.`

const strictSuffix = `

STRICT MODE: your previous answer could not be parsed. Output exactly one JSON object with the
keys "origin", "destination", "date", "transport", "confidence" and nothing else. No prose, no
markdown, no code fences.`

const completeInstruction = `You fill in missing trip booking parameters.
Today is %s.

The input is a JSON object with:
- "last_question": the question the traveller was answering (may be null),
- "user_input": the traveller's answer,
- "known_slots": the parameters still missing, all currently null.

Return ONE JSON object with only the keys of "known_slots" plus "confidence". Apply the same
normalization as extraction: canonical English city names, ISO dates, transport in
"bus"/"train"/"plane". Use null when the answer does not state the value.`

const yesNoInstruction = `Classify the traveller's reply to a yes/no question.
Answer with exactly one word: "yes", "no" or "unknown".`

const questionInstruction = `You are a friendly travel booking assistant.
Write one short question asking the traveller for the %s of the trip.
Reply with the question only.`

const confirmationInstruction = `You are a friendly travel booking assistant.
Write one short sentence that repeats the trip below and asks the traveller to confirm it.
Keep the city names exactly as given.

Trip: %s`

const fallbackInstruction = `You are a travel booking assistant. The traveller wrote something that
is not about a trip. Reply with one short, polite sentence and invite them to say where and
when they want to travel.`

const timeInstruction = `Convert the traveller's departure time to 24-hour HH:MM.
Reply with the time only, or "unknown" if no time is stated.`

const historyInstruction = `Decide whether the traveller asks about their past bookings.
Return ONE JSON object: {"action": "show"|"cancel"|"none", "limit": number|null, "destination": string|null}.
"show" lists recent trips, "cancel" cancels the trip to "destination" (canonical English city name).`
