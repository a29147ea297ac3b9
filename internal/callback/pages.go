package callback

// LoginSuccessHtml is displayed in the browser after a successful OAuth
// callback. The CLI finishes the exchange in the background; the page exists
// so the creator isn't left staring at a blank tab.
const LoginSuccessHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>TikTok Connected - SANAA360</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #111827 0%, #dc2626 100%);
            padding: 1rem;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
        }
        .success-icon {
            width: 64px;
            height: 64px;
            margin: 0 auto 1.5rem;
            background: #10b981;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
            font-size: 2rem;
            font-weight: bold;
        }
        h1 { color: #1f2937; margin-bottom: 1rem; font-size: 1.75rem; }
        .subtitle { color: #6b7280; font-size: 1rem; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="success-icon">&#10003;</div>
        <h1>TikTok Connected</h1>
        <p class="subtitle">Your TikTok account is being linked to SANAA360.
        You can close this window and return to the terminal.</p>
    </div>
</body>
</html>`

// LoginFailureHtml is displayed when the redirect itself carried an OAuth
// error or lacked an authorization code. The terminal shows the details.
const LoginFailureHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Connection Failed - SANAA360</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #111827 0%, #dc2626 100%);
            padding: 1rem;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
        }
        .error-icon {
            width: 64px;
            height: 64px;
            margin: 0 auto 1.5rem;
            background: #ef4444;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
            font-size: 2rem;
            font-weight: bold;
        }
        h1 { color: #1f2937; margin-bottom: 1rem; font-size: 1.75rem; }
        .subtitle { color: #6b7280; font-size: 1rem; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="container">
        <div class="error-icon">&#10005;</div>
        <h1>Connection Failed</h1>
        <p class="subtitle">TikTok did not complete the authorization.
        Return to the terminal and try again.</p>
    </div>
</body>
</html>`
