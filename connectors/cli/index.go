package cli

var indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <link rel="stylesheet" href="https://unpkg.com/purecss@3.0.0/build/pure-min.css">
    <title>CLI</title>
</head>
<body style="padding: 1em;">
<form class="pure-form pure-form-stacked" id="say">
    <fieldset>
        <legend>Talk to the bot</legend>
        <input name="from" type="number" placeholder="Your account" required>
        <input name="name" type="text" placeholder="Nickname">
        <input name="group" type="number" placeholder="Group (empty for private)">
        <input name="guild" type="number" placeholder="Guild">
        <input name="channel" type="number" placeholder="Channel">
        <label><input name="mention" type="checkbox" value="true"> Mention the bot</label>
        <input name="text" type="text" placeholder="!help" autocomplete="off" required>
        <button type="submit" class="pure-button pure-button-primary">Send</button>
    </fieldset>
</form>
<pre id="log"></pre>
<script>
    const log = document.getElementById('log');
    const form = document.getElementById('say');
    form.addEventListener('submit', async (evt) => {
        evt.preventDefault();
        const body = new FormData(form);
        log.textContent += '> ' + body.get('text') + '\n';
        const resp = await fetch('/cli/api', {method: 'POST', body: body});
        const data = await resp.json();
        if (!resp.ok) {
            log.textContent += '! ' + data.Err + '\n';
            return;
        }
        for (const out of data) {
            log.textContent += out.text + '\n';
        }
        form.elements.text.value = '';
    });
</script>
</body>
</html>
`
