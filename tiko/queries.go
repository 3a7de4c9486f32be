package tiko

// GraphQL documents sent to the service. The service dispatches on
// operationName; each document requests only the fields decoded by the
// client.

const loginMutation = `
mutation LogIn($email: String!, $password: String!, $langCode: String, $retainSession: Boolean) {
  logIn(input: {email: $email, password: $password, langCode: $langCode, retainSession: $retainSession}) {
    token
    user {
      id
      properties {
        id
      }
    }
  }
}`

const roomsQuery = `
query GetRooms($propertyId: Int!) {
  property(id: $propertyId) {
    rooms {
      id
      name
      currentTemperatureDegrees
      targetTemperatureDegrees
      humidity
      status {
        heatingOperating
        disconnected
      }
    }
  }
}`

const devicesQuery = `
query GetDevices($propertyId: Int!) {
  property(id: $propertyId) {
    devices {
      id
      code
      type
      name
      mac
    }
    externalDevices {
      id
      name
    }
  }
}`

const adjustTemperatureMutation = `
mutation SET_PROPERTY_ROOM_ADJUST_TEMPERATURE($propertyId: Int!, $roomId: Int!, $temperature: Float!) {
  setRoomAdjustTemperature(input: {propertyId: $propertyId, roomId: $roomId, temperature: $temperature}) {
    id
    adjustTemperature {
      active
      endDateTime
      temperature
    }
  }
}`

const setModeMutation = `
mutation SetMode($propertyId: Int!, $mode: String!) {
  setPropertyMode(input: {propertyId: $propertyId, mode: $mode}) {
    id
    mode
  }
}`
